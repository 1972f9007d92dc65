package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"civicdocs/internal/embedder"
	"civicdocs/internal/ingest"
	"civicdocs/internal/parser"
	"civicdocs/internal/store"

	"github.com/spf13/cobra"
)

var flagBatch int

var reembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Recompute every section embedding with the configured model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		batch := cfg.BatchSize
		if cmd.Flags().Changed("batch") {
			batch = flagBatch
		}
		if batch <= 0 {
			return fmt.Errorf("batch size must be positive, got %d", batch)
		}

		emb, err := embedder.New(cfg.Embedder)
		if err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		return runReembed(ctx, cmd.OutOrStdout(), st, emb, batch)
	},
}

func runReembed(ctx context.Context, out io.Writer, st store.Store, emb embedder.Embedder, batch int) error {
	total, err := st.CountSections(ctx)
	if err != nil {
		return err
	}
	if total == 0 {
		fmt.Fprintln(out, "No sections found.")
		return nil
	}

	fmt.Fprintf(out, "Re-embedding %d sections with %s (batch %d)...\n", total, emb.Model(), batch)
	start := time.Now()

	ing := ingest.New(st, parser.New(), emb, log)
	stats, err := ing.Reembed(ctx, batch, func(done, total int) {
		fmt.Fprintf(out, "  %d / %d sections\n", done, total)
	})
	if stats != nil {
		fmt.Fprintf(out, "\nDone in %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Fprintf(out, "  Sections: %d in %d batches\n", stats.Sections, stats.Batches)
	}
	return err
}

func init() {
	reembedCmd.Flags().IntVar(&flagBatch, "batch", ingest.DefaultBatchSize, "sections per embedding request (default from config)")
	rootCmd.AddCommand(reembedCmd)
}
