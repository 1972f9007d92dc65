package tui

import (
	"context"
	"fmt"

	"civicdocs/internal/ingest"
	"civicdocs/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

type corpusStatus int

const (
	corpusEmpty corpusStatus = iota
	corpusReady
	corpusStale
)

type welcomeModel struct {
	status      corpusStatus
	staleReason string
	stats       *store.Stats
	err         error
	ready       bool // true once the check has completed
}

// checkCorpusMsg is sent after reading the corpus counts.
type checkCorpusMsg struct {
	status      corpusStatus
	staleReason string
	stats       *store.Stats
	err         error
}

func checkCorpus(cfg Config) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		stats, err := cfg.Corpus.Stats(ctx)
		if err != nil {
			return checkCorpusMsg{status: corpusEmpty, err: err}
		}
		if stats.Sections == 0 {
			return checkCorpusMsg{status: corpusEmpty, stats: stats}
		}

		lastModel, err := cfg.Corpus.GetMeta(ctx, ingest.MetaEmbeddingModel)
		if err != nil {
			return checkCorpusMsg{status: corpusEmpty, stats: stats, err: err}
		}
		switch {
		case lastModel != "" && lastModel != cfg.Model:
			return checkCorpusMsg{
				status:      corpusStale,
				stats:       stats,
				staleReason: fmt.Sprintf("model changed: %s → %s", lastModel, cfg.Model),
			}
		case stats.MissingEmbeddings > 0:
			return checkCorpusMsg{
				status:      corpusStale,
				stats:       stats,
				staleReason: fmt.Sprintf("%d sections have no embedding", stats.MissingEmbeddings),
			}
		}
		return checkCorpusMsg{status: corpusReady, stats: stats}
	}
}

func (m welcomeModel) canReembed() bool {
	return m.status == corpusStale
}

func (m welcomeModel) Update(msg tea.Msg) (welcomeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case checkCorpusMsg:
		m.status = msg.status
		m.staleReason = msg.staleReason
		m.stats = msg.stats
		m.err = msg.err
		m.ready = true
	}
	return m, nil
}

func (m welcomeModel) View(width, height int) string {
	s := "\n"
	s += titleStyle.Render("  ◆ civicdocs") + "\n"
	s += subtitleStyle.Render("  Semantic search over constitutions, bills and briefs") + "\n\n"

	if !m.ready {
		s += dimStyle.Render("  Reading corpus...") + "\n"
		return s
	}
	if m.err != nil {
		s += errorStyle.Render("  Error: "+m.err.Error()) + "\n"
	}

	if m.stats != nil {
		s += fmt.Sprintf("  %s documents  %s sections  %s embeddings\n",
			countStyle.Render(fmt.Sprint(m.stats.Documents)),
			countStyle.Render(fmt.Sprint(m.stats.Sections)),
			countStyle.Render(fmt.Sprint(m.stats.Embeddings)))
		s += "\n"
	}

	switch m.status {
	case corpusReady:
		s += successStyle.Render("  ✓ Corpus ready") + "\n"
	case corpusEmpty:
		s += warnStyle.Render("  ✗ Corpus is empty") + "\n"
		s += dimStyle.Render("    Run 'civicdocs ingest <dir>' first") + "\n"
	case corpusStale:
		s += warnStyle.Render("  ⚠ Embeddings stale") + "\n"
		s += dimStyle.Render("    "+m.staleReason) + "\n"
	}

	s += "\n"
	if m.canReembed() {
		s += dimStyle.Render("  Press r to re-embed, Enter to search anyway") + "\n"
	} else {
		s += dimStyle.Render("  Press Enter to continue") + "\n"
	}
	return s
}
