package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"civicdocs/internal/search"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const searchHelp = "Commands:\n  /k <n>   - results per query (1-20)\n  /clear   - clear results\n  /exit    - quit\n  /help    - show this help"

type searchModel struct {
	viewport    viewport.Model
	input       textinput.Model
	spinner     spinner.Model
	renderer    *glamour.TermRenderer
	entries     []searchEntry
	searcher    Searcher
	searching   bool
	k           int
	width       int
	height      int
	initialized bool
}

type searchEntry struct {
	kind    string
	content string
}

// resultsMsg is sent when a query completes.
type resultsMsg struct {
	resp *search.Response
	err  error
}

func newSearchModel(s Searcher, k int) searchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	ti := textinput.New()
	ti.Placeholder = "Search constitutions, bills and briefs..."
	ti.CharLimit = 2000
	ti.Focus()

	return searchModel{
		spinner:  sp,
		input:    ti,
		searcher: s,
		k:        search.ClampK(k),
	}
}

func (m *searchModel) initViewport(width, height int) {
	m.width = width
	m.height = height

	// Layout: viewport + status bar (1 line) + input (1 line) + gap (1 line).
	vpHeight := max(height-3, 5)
	m.viewport = viewport.New(width, vpHeight)
	m.viewport.SetContent(dimStyle.Render("Type a question and press Enter.\n\n" + searchHelp))

	m.input.Width = width - 4

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err == nil {
		m.renderer = r
	}

	m.initialized = true
}

func runQuery(s Searcher, query string, k int) tea.Cmd {
	return func() tea.Msg {
		resp, err := s.Query(context.Background(), query, k)
		return resultsMsg{resp: resp, err: err}
	}
}

func (m searchModel) Update(msg tea.Msg) (searchModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.initViewport(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case resultsMsg:
		m.searching = false
		if msg.err != nil {
			m.entries = append(m.entries, searchEntry{kind: "error", content: msg.err.Error()})
		} else {
			m.entries = append(m.entries, searchEntry{kind: "results", content: formatHits(msg.resp)})
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.searching {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.refresh()
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if m.searching {
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			query := strings.TrimSpace(m.input.Value())
			if query == "" {
				return m, nil
			}
			m.input.Reset()
			return m.submit(query)
		}
	}

	if !m.searching {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m searchModel) submit(query string) (searchModel, tea.Cmd) {
	switch {
	case query == "/exit" || query == "/quit":
		return m, tea.Quit
	case query == "/clear":
		m.entries = nil
		m.viewport.SetContent(dimStyle.Render("Results cleared."))
		return m, nil
	case query == "/help":
		m.entries = append(m.entries, searchEntry{kind: "system", content: searchHelp})
		m.refresh()
		return m, nil
	case query == "/k" || strings.HasPrefix(query, "/k "):
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(query, "/k")))
		if err != nil {
			m.entries = append(m.entries, searchEntry{kind: "error", content: "usage: /k <n>"})
		} else {
			m.k = search.ClampK(n)
			m.entries = append(m.entries, searchEntry{kind: "system", content: fmt.Sprintf("Showing %d results per query.", m.k)})
		}
		m.refresh()
		return m, nil
	}

	m.entries = append(m.entries, searchEntry{kind: "query", content: query})
	m.searching = true
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, runQuery(m.searcher, query, m.k))
}

func (m *searchModel) refresh() {
	m.viewport.SetContent(m.renderEntries())
	m.viewport.GotoBottom()
}

// formatHits renders a response as Markdown.
func formatHits(resp *search.Response) string {
	if resp == nil || len(resp.Results) == 0 {
		return "_No matching sections._"
	}
	var sb strings.Builder
	for i, h := range resp.Results {
		fmt.Fprintf(&sb, "### %d. %s\n\n", i+1, h.DocumentTitle)
		fmt.Fprintf(&sb, "`%s` · %s · section %d · score %.4f\n\n", h.DocumentSlug, h.DocType, h.SectionIndex, h.Score)
		if h.Heading != "" {
			fmt.Fprintf(&sb, "**%s**\n\n", h.Heading)
		}
		for _, line := range strings.Split(h.Snippet, "\n") {
			fmt.Fprintf(&sb, "> %s\n", line)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m searchModel) renderMarkdown(content string) string {
	if m.renderer == nil {
		return resultStyle.Render(content)
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return resultStyle.Render(content)
	}
	return strings.TrimRight(rendered, "\n")
}

func (m searchModel) renderEntries() string {
	var sb strings.Builder
	for _, e := range m.entries {
		switch e.kind {
		case "query":
			sb.WriteString(queryStyle.Render("Query: ") + e.content + "\n\n")
		case "results":
			sb.WriteString(m.renderMarkdown(e.content) + "\n\n")
		case "error":
			sb.WriteString(errorStyle.Render("Error: "+e.content) + "\n\n")
		case "system":
			sb.WriteString(dimStyle.Render(e.content) + "\n\n")
		}
	}

	if m.searching {
		sb.WriteString(m.spinner.View() + " " + dimStyle.Render("Searching...") + "\n")
	}

	return sb.String()
}

func (m searchModel) View(width, height int) string {
	if !m.initialized {
		return ""
	}

	statusText := "idle"
	if m.searching {
		statusText = "searching..."
	}
	statusBar := statusBarStyle.
		Width(m.width).
		Render(fmt.Sprintf(" civicdocs search • k=%d • %s", m.k, statusText))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		statusBar,
		m.input.View(),
	)
}
