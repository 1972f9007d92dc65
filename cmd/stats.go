package cmd

import (
	"fmt"

	"civicdocs/internal/ingest"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document, section and embedding counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.Stats(ctx)
		if err != nil {
			return err
		}
		model, err := st.GetMeta(ctx, ingest.MetaEmbeddingModel)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Database:    %s\n", cfg.DBPath)
		fmt.Fprintf(out, "Documents:   %d\n", stats.Documents)
		fmt.Fprintf(out, "Sections:    %d\n", stats.Sections)
		fmt.Fprintf(out, "Embeddings:  %d\n", stats.Embeddings)
		fmt.Fprintf(out, "  missing:   %d\n", stats.MissingEmbeddings)
		fmt.Fprintf(out, "  corrupt:   %d\n", stats.BadVectors)
		if model != "" {
			fmt.Fprintf(out, "Last model:  %s\n", model)
		}
		for _, m := range stats.Models {
			fmt.Fprintf(out, "  %-24s %d\n", m.Model, m.Count)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
