package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"civicdocs/internal/search"

	"github.com/spf13/cobra"
)

var (
	flagK    int
	flagJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find the sections most similar to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		emb, err := queryEmbedder()
		if err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		svc := search.NewService(st, emb, log)
		resp, err := svc.Query(ctx, strings.Join(args, " "), flagK)
		if err != nil {
			return err
		}

		if flagJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}

		if len(resp.Results) == 0 {
			fmt.Fprintf(out, "No results found for query: %q\n", resp.Query)
			return nil
		}
		for i, h := range resp.Results {
			fmt.Fprintf(out, "%d. [%.4f] %s (%s, %s) section %d\n",
				i+1, h.Score, h.DocumentTitle, h.DocumentSlug, h.DocType, h.SectionIndex)
			if h.Heading != "" {
				fmt.Fprintf(out, "   %s\n", h.Heading)
			}
			fmt.Fprintf(out, "   %s\n\n", strings.ReplaceAll(h.Snippet, "\n", " "))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&flagK, "k", search.DefaultK, "number of results (1-20)")
	searchCmd.Flags().BoolVar(&flagJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(searchCmd)
}
