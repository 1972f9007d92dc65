package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type reembedModel struct {
	spinner spinner.Model
	done    int
	total   int
	// finished is set once the pass has returned.
	finished bool
	err      error
}

func newReembedModel() reembedModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return reembedModel{spinner: sp}
}

// reembedDoneMsg is sent when the pass completes.
type reembedDoneMsg struct {
	err error
}

// reembedProgressMsg is sent after each committed batch.
type reembedProgressMsg struct {
	done  int
	total int
}

func runReembed(cfg Config) tea.Cmd {
	return func() tea.Msg {
		err := cfg.Reembed(context.Background(), func(done, total int) {
			if cfg.program != nil && cfg.program.p != nil {
				cfg.program.p.Send(reembedProgressMsg{done: done, total: total})
			}
		})
		return reembedDoneMsg{err: err}
	}
}

func (m reembedModel) Update(msg tea.Msg) (reembedModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reembedDoneMsg:
		m.finished = true
		m.err = msg.err
		return m, nil
	case reembedProgressMsg:
		m.done = msg.done
		m.total = msg.total
		return m, nil
	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m reembedModel) View(width, height int) string {
	s := "\n"
	s += titleStyle.Render("  Re-embedding") + "\n\n"

	if m.finished {
		if m.err != nil {
			s += errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n\n"
			s += dimStyle.Render("  Press Enter to search anyway, or q to quit.") + "\n"
			return s
		}
		s += successStyle.Render("  ✓ Re-embedding complete!") + "\n\n"
		s += fmt.Sprintf("  Sections: %d\n\n", m.done)
		s += dimStyle.Render("  Press Enter to start searching") + "\n"
		return s
	}

	s += fmt.Sprintf("  %s Embedding sections...\n", m.spinner.View())
	if m.total > 0 {
		s += fmt.Sprintf("  %d / %d sections\n", m.done, m.total)
	}
	return s
}
