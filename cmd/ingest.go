package cmd

import (
	"fmt"
	"time"

	"civicdocs/internal/embedder"
	"civicdocs/internal/ingest"
	"civicdocs/internal/parser"
	"civicdocs/internal/store"

	"github.com/spf13/cobra"
)

var (
	flagDocType  string
	flagMaxChars int
	flagOverlap  int
	flagPattern  string
	flagReplace  bool
	flagDryRun   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Ingest a folder of documents into the search database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		maxChars, overlap := cfg.Chunker.MaxChars, cfg.Chunker.Overlap
		if cmd.Flags().Changed("max-chars") {
			maxChars = flagMaxChars
		}
		if cmd.Flags().Changed("overlap") {
			overlap = flagOverlap
		}
		opts := ingest.Options{
			Root:     args[0],
			DocType:  store.DocType(flagDocType),
			MaxChars: maxChars,
			Overlap:  overlap,
			Pattern:  flagPattern,
			Replace:  flagReplace,
			DryRun:   flagDryRun,
			OnFile: func(r ingest.FileResult) {
				printFileResult(cmd, r)
			},
		}
		if err := opts.Validate(); err != nil {
			return err
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

		if flagDryRun {
			fmt.Fprintf(out, "Previewing %s (nothing will be written)...\n", args[0])
		} else {
			fmt.Fprintf(out, "Ingesting %s...\n", args[0])
		}
		start := time.Now()

		ing := ingest.New(st, parser.New(), emb, log)
		stats, err := ing.Run(ctx, opts)
		elapsed := time.Since(start)

		if stats != nil {
			fmt.Fprintf(out, "\nDone in %s\n", elapsed.Round(time.Millisecond))
			fmt.Fprintf(out, "  Files:    %d total, %d created, %d updated, %d skipped, %d failed\n",
				stats.FilesTotal, stats.Created, stats.Updated, stats.Skipped, stats.Failed)
			if flagDryRun {
				fmt.Fprintf(out, "  Preview:  %d files\n", stats.Previewed)
			}
			fmt.Fprintf(out, "  Sections: %d\n", stats.SectionsTotal)
		}

		return err
	},
}

func printFileResult(cmd *cobra.Command, r ingest.FileResult) {
	out := cmd.OutOrStdout()
	switch r.Status {
	case ingest.StatusCreated, ingest.StatusUpdated:
		fmt.Fprintf(out, "  %-8s %s -> %s (%d sections)\n", r.Status, r.RelPath, r.Slug, r.Sections)
	case ingest.StatusPreview:
		fmt.Fprintf(out, "  %-8s %s -> %s (%d sections, %s)\n", r.Status, r.RelPath, r.Slug, r.Sections, r.Reason)
	default:
		fmt.Fprintf(out, "  %-8s %s: %s\n", r.Status, r.RelPath, r.Reason)
	}
}

func init() {
	ingestCmd.Flags().StringVar(&flagDocType, "doc-type", string(store.DocTypeOther), "document type (constitution, bill, brief, other)")
	ingestCmd.Flags().IntVar(&flagMaxChars, "max-chars", 0, "maximum section length in characters (default from config)")
	ingestCmd.Flags().IntVar(&flagOverlap, "overlap", 0, "characters carried over from the previous section (default from config)")
	ingestCmd.Flags().StringVar(&flagPattern, "pattern", "", "only ingest files whose path below the folder contains this substring")
	ingestCmd.Flags().BoolVar(&flagReplace, "replace", false, "re-ingest documents that already exist")
	ingestCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show what would happen without writing")
	rootCmd.AddCommand(ingestCmd)
}
