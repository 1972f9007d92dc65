package tui

import (
	"context"

	"civicdocs/internal/search"
	"civicdocs/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

// ViewState represents which screen is active.
type ViewState int

const (
	ViewWelcome ViewState = iota
	ViewReembed
	ViewSearch
)

// programRef is an indirect pointer to the tea.Program so background goroutines
// can send messages. It must be set after tea.NewProgram returns but before Run.
type programRef struct {
	p *tea.Program
}

// Corpus is the read side of the store shown on the welcome screen.
type Corpus interface {
	Stats(ctx context.Context) (*store.Stats, error)
	GetMeta(ctx context.Context, key string) (string, error)
}

// Searcher answers queries from the search view.
type Searcher interface {
	Query(ctx context.Context, text string, k int) (*search.Response, error)
}

// ReembedFunc recomputes every embedding, reporting progress through onBatch.
type ReembedFunc func(ctx context.Context, onBatch func(done, total int)) error

// Config holds configuration passed from the CLI layer.
type Config struct {
	Corpus   Corpus
	Searcher Searcher
	Reembed  ReembedFunc
	Model    string
	K        int

	// program is set internally so background goroutines can send messages.
	program *programRef
}

// Model is the top-level Bubble Tea model.
type Model struct {
	state  ViewState
	config Config
	width  int
	height int

	welcome welcomeModel
	reembed reembedModel
	search  searchModel
}

// New creates a new TUI model with the given config.
func New(cfg Config) Model {
	if cfg.K <= 0 {
		cfg.K = search.DefaultK
	}
	return Model{
		state:  ViewWelcome,
		config: cfg,
	}
}

func (m Model) Init() tea.Cmd {
	return checkCorpus(m.config)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.state == ViewSearch {
			var c tea.Cmd
			m.search, c = m.search.Update(msg)
			return m, c
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.state != ViewSearch {
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd

	switch m.state {
	case ViewWelcome:
		m.welcome, cmd = m.welcome.Update(msg)
		if cmd != nil {
			return m, cmd
		}
		keyMsg, ok := msg.(tea.KeyMsg)
		if !ok || !m.welcome.ready {
			return m, nil
		}
		switch {
		case keyMsg.String() == "r" && m.welcome.canReembed() && m.config.Reembed != nil:
			m.state = ViewReembed
			m.reembed = newReembedModel()
			return m, tea.Batch(m.reembed.spinner.Tick, runReembed(m.config))
		case keyMsg.Type == tea.KeyEnter:
			return m, m.transitionToSearch()
		}

	case ViewReembed:
		m.reembed, cmd = m.reembed.Update(msg)
		if cmd != nil {
			return m, cmd
		}
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter && m.reembed.finished {
			return m, m.transitionToSearch()
		}

	case ViewSearch:
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) transitionToSearch() tea.Cmd {
	m.search = newSearchModel(m.config.Searcher, m.config.K)
	m.search.initViewport(m.width, m.height)
	m.state = ViewSearch
	return nil
}

func (m Model) View() string {
	switch m.state {
	case ViewWelcome:
		return m.welcome.View(m.width, m.height)
	case ViewReembed:
		return m.reembed.View(m.width, m.height)
	case ViewSearch:
		return m.search.View(m.width, m.height)
	}
	return ""
}

// Run starts the TUI program.
func Run(cfg Config) error {
	ref := &programRef{}
	cfg.program = ref
	model := New(cfg)
	p := tea.NewProgram(model, tea.WithAltScreen())
	ref.p = p
	_, err := p.Run()
	return err
}
