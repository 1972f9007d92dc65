package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"civicdocs/internal/search"
	"civicdocs/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing document search tools",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

// documentReader is the store surface the MCP tools read from.
type documentReader interface {
	ListDocuments(ctx context.Context, docType store.DocType) ([]store.DocumentSummary, error)
	GetDocument(ctx context.Context, slug string) (*store.Document, []store.Section, error)
}

// queryer is satisfied by *search.Service.
type queryer interface {
	Query(ctx context.Context, text string, k int) (*search.Response, error)
}

func runMCP(cmd *cobra.Command, args []string) error {
	emb, err := queryEmbedder()
	if err != nil {
		return err
	}
	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	return mcpserver.ServeStdio(newMCPServer(search.NewService(st, emb, log), st))
}

func newMCPServer(q queryer, docs documentReader) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("civicdocs", "1.0.0", mcpserver.WithToolCapabilities(false))
	s.AddTool(searchDocumentsTool(), makeSearchHandler(q))
	s.AddTool(listDocumentsTool(), makeListDocumentsHandler(docs))
	s.AddTool(getDocumentTool(), makeGetDocumentHandler(docs))
	return s
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchDocumentsTool() mcp.Tool {
	return mcp.NewTool("search_documents",
		mcp.WithDescription("Semantically search ingested constitutions, bills and briefs. Returns the closest sections with document title, slug, heading and a snippet."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language query"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of sections to return (1-20, default 5)"),
		),
	)
}

func listDocumentsTool() mcp.Tool {
	return mcp.NewTool("list_documents",
		mcp.WithDescription("List ingested documents with their type and section count."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("doc_type",
			mcp.Description("Optional filter: constitution, bill, brief or other."),
		),
	)
}

func getDocumentTool() mcp.Tool {
	return mcp.NewTool("get_document",
		mcp.WithDescription("Get every section of one document, in order."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("slug",
			mcp.Required(),
			mcp.Description("Document slug as returned by search_documents or list_documents"),
		),
	)
}

// --- Handler factories ---

func makeSearchHandler(q queryer) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if strings.TrimSpace(query) == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		k := req.GetInt("k", search.DefaultK)

		resp, err := q.Query(ctx, query, k)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatSearchResults(resp)), nil
	}
}

func makeListDocumentsHandler(docs documentReader) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docType := store.DocType(strings.ToLower(strings.TrimSpace(req.GetString("doc_type", ""))))
		if docType != "" && !docType.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("unknown doc_type %q", docType)), nil
		}

		list, err := docs.ListDocuments(ctx, docType)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list documents failed: %v", err)), nil
		}

		var sb strings.Builder
		if docType != "" {
			fmt.Fprintf(&sb, "## Documents (%d, type: %s)\n\n", len(list), docType)
		} else {
			fmt.Fprintf(&sb, "## Documents (%d)\n\n", len(list))
		}
		for _, d := range list {
			fmt.Fprintf(&sb, "- **%s** `%s` (%s, %d sections)\n", d.Title, d.Slug, d.DocType, d.Sections)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeGetDocumentHandler(docs documentReader) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		slug := strings.TrimSpace(req.GetString("slug", ""))
		if slug == "" {
			return mcp.NewToolResultError("slug is required"), nil
		}

		doc, sections, err := docs.GetDocument(ctx, slug)
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("document %q not found, call list_documents to see available slugs", slug)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("get document failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "# %s\n\n**Slug:** %s  \n**Type:** %s  \n**Source:** %s  \n**Sections:** %d\n\n",
			doc.Title, doc.Slug, doc.DocType, doc.SourcePath, len(sections))
		for _, s := range sections {
			if s.Heading != "" {
				fmt.Fprintf(&sb, "## %d. %s\n\n", s.Index, s.Heading)
			} else {
				fmt.Fprintf(&sb, "## %d.\n\n", s.Index)
			}
			sb.WriteString(s.Text + "\n\n")
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(resp *search.Response) string {
	if len(resp.Results) == 0 {
		return fmt.Sprintf("No results found for query: %q", resp.Query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d sections)\n\n", resp.Query, len(resp.Results))

	for i, h := range resp.Results {
		fmt.Fprintf(&sb, "### Result %d: %s\n\n", i+1, h.DocumentTitle)
		fmt.Fprintf(&sb, "**Slug:** %s  \n**Type:** %s  \n**Section:** %d  \n**Score:** %.4f\n",
			h.DocumentSlug, h.DocType, h.SectionIndex, h.Score)
		if h.Heading != "" {
			fmt.Fprintf(&sb, "**Heading:** %s\n", h.Heading)
		}
		fmt.Fprintf(&sb, "\n%s\n\n", h.Snippet)
	}

	return sb.String()
}
