package cmd

import (
	"context"
	"io"

	"civicdocs/internal/embedder"
	"civicdocs/internal/ingest"
	"civicdocs/internal/parser"
	"civicdocs/internal/search"
	"civicdocs/internal/store"
	"civicdocs/internal/tui"

	"github.com/sirupsen/logrus"
)

func runTUI(ctx context.Context) error {
	queryEmb, err := queryEmbedder()
	if err != nil {
		return err
	}
	reembedEmb, err := embedder.New(cfg.Embedder)
	if err != nil {
		return err
	}
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	// Log lines would corrupt the alternate screen.
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	return tui.Run(tuiConfig(st, queryEmb, reembedEmb, cfg.BatchSize, quiet))
}

// tuiConfig wires the interactive surface. Searches go through queryEmb;
// re-embedding sends every section once, so it takes an uncached embedder.
func tuiConfig(st store.Store, queryEmb, reembedEmb embedder.Embedder, batch int, log logrus.FieldLogger) tui.Config {
	ing := ingest.New(st, parser.New(), reembedEmb, log)
	return tui.Config{
		Corpus:   st,
		Searcher: search.NewService(st, queryEmb, log),
		Reembed: func(ctx context.Context, onBatch func(done, total int)) error {
			_, err := ing.Reembed(ctx, batch, onBatch)
			return err
		},
		Model: queryEmb.Model(),
		K:     search.DefaultK,
	}
}
