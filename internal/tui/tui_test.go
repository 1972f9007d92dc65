package tui

import (
	"context"
	"errors"
	"testing"

	"civicdocs/internal/ingest"
	"civicdocs/internal/search"
	"civicdocs/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCorpus struct {
	stats *store.Stats
	meta  map[string]string
	err   error
}

func (f fakeCorpus) Stats(context.Context) (*store.Stats, error) { return f.stats, f.err }

func (f fakeCorpus) GetMeta(_ context.Context, key string) (string, error) {
	return f.meta[key], nil
}

type fakeSearcher struct {
	resp *search.Response
	k    int
}

func (f *fakeSearcher) Query(_ context.Context, text string, k int) (*search.Response, error) {
	f.k = k
	return f.resp, nil
}

func TestCheckCorpus(t *testing.T) {
	tests := []struct {
		name   string
		corpus fakeCorpus
		want   corpusStatus
	}{
		{
			name:   "empty",
			corpus: fakeCorpus{stats: &store.Stats{}},
			want:   corpusEmpty,
		},
		{
			name: "ready",
			corpus: fakeCorpus{
				stats: &store.Stats{Documents: 1, Sections: 3, Embeddings: 3},
				meta:  map[string]string{ingest.MetaEmbeddingModel: "stub-v1"},
			},
			want: corpusReady,
		},
		{
			name: "model changed",
			corpus: fakeCorpus{
				stats: &store.Stats{Documents: 1, Sections: 3, Embeddings: 3},
				meta:  map[string]string{ingest.MetaEmbeddingModel: "other"},
			},
			want: corpusStale,
		},
		{
			name: "missing embeddings",
			corpus: fakeCorpus{
				stats: &store.Stats{Documents: 1, Sections: 3, Embeddings: 2, MissingEmbeddings: 1},
				meta:  map[string]string{ingest.MetaEmbeddingModel: "stub-v1"},
			},
			want: corpusStale,
		},
		{
			name:   "stats error",
			corpus: fakeCorpus{err: errors.New("no such table: documents")},
			want:   corpusEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := checkCorpus(Config{Corpus: tt.corpus, Model: "stub-v1"})()
			got, ok := msg.(checkCorpusMsg)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.status)
		})
	}
}

func TestWelcome_ReembedOnlyWhenStale(t *testing.T) {
	m := New(Config{
		Corpus:  fakeCorpus{},
		Model:   "stub-v1",
		Reembed: func(context.Context, func(int, int)) error { return nil },
	})
	updated, _ := m.Update(checkCorpusMsg{status: corpusReady, stats: &store.Stats{Sections: 1}})
	m = updated.(Model)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Equal(t, ViewWelcome, updated.(Model).state)

	m = New(m.config)
	updated, _ = m.Update(checkCorpusMsg{status: corpusStale, stats: &store.Stats{Sections: 1}})
	updated, cmd := updated.(Model).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Equal(t, ViewReembed, updated.(Model).state)
	assert.NotNil(t, cmd)
}

func TestWelcome_EnterOpensSearch(t *testing.T) {
	m := New(Config{Corpus: fakeCorpus{}, Searcher: &fakeSearcher{}, K: 50})
	updated, _ := m.Update(checkCorpusMsg{status: corpusReady, stats: &store.Stats{}})
	updated, _ = updated.(Model).Update(tea.KeyMsg{Type: tea.KeyEnter})

	got := updated.(Model)
	assert.Equal(t, ViewSearch, got.state)
	assert.Equal(t, search.MaxK, got.search.k)
}

func TestReembedView_Progress(t *testing.T) {
	m := newReembedModel()
	m, _ = m.Update(reembedProgressMsg{done: 128, total: 300})
	assert.Contains(t, m.View(80, 24), "128 / 300 sections")

	m, _ = m.Update(reembedDoneMsg{})
	assert.True(t, m.finished)
	assert.Contains(t, m.View(80, 24), "Re-embedding complete")
}

func TestSearchModel_Submit(t *testing.T) {
	s := &fakeSearcher{resp: &search.Response{Results: []search.Hit{}}}
	m := newSearchModel(s, 5)
	m.initViewport(80, 24)

	m, cmd := m.submit("/k 50")
	assert.Nil(t, cmd)
	assert.Equal(t, search.MaxK, m.k)

	m, _ = m.submit("/k many")
	assert.Equal(t, "error", m.entries[len(m.entries)-1].kind)

	m, cmd = m.submit("county budget")
	require.NotNil(t, cmd)
	assert.True(t, m.searching)

	m, _ = m.Update(runQuery(s, "county budget", m.k)())
	assert.False(t, m.searching)
	assert.Equal(t, search.MaxK, s.k)
	assert.Equal(t, "results", m.entries[len(m.entries)-1].kind)
}

func TestSearchModel_SlashKOnlyAsCommand(t *testing.T) {
	s := &fakeSearcher{resp: &search.Response{Results: []search.Hit{}}}
	m := newSearchModel(s, 5)
	m.initViewport(80, 24)

	m, cmd := m.submit("/k")
	assert.Nil(t, cmd)
	assert.Equal(t, "error", m.entries[len(m.entries)-1].kind)

	m, cmd = m.submit("/kenya")
	require.NotNil(t, cmd)
	assert.True(t, m.searching)
	assert.Equal(t, 5, m.k)
	last := m.entries[len(m.entries)-1]
	assert.Equal(t, "query", last.kind)
	assert.Equal(t, "/kenya", last.content)
}

func TestFormatHits(t *testing.T) {
	assert.Equal(t, "_No matching sections._", formatHits(&search.Response{}))

	out := formatHits(&search.Response{Results: []search.Hit{{
		Score:         0.8731,
		DocumentTitle: "Finance Bill 2024",
		DocumentSlug:  "finance-bill-2024",
		DocType:       store.DocTypeBill,
		SectionIndex:  3,
		Heading:       "Part II",
		Snippet:       "Excise duty.\nRates apply.",
	}}})
	assert.Contains(t, out, "### 1. Finance Bill 2024")
	assert.Contains(t, out, "`finance-bill-2024` · bill · section 3 · score 0.8731")
	assert.Contains(t, out, "**Part II**")
	assert.Contains(t, out, "> Excise duty.\n> Rates apply.\n")
}
