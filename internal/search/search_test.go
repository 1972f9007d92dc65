package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicdocs/internal/store"
	"civicdocs/internal/vector"
)

type fakeScanner []store.EmbeddingRow

func (f fakeScanner) ScanEmbeddings(_ context.Context, fn func(store.EmbeddingRow) error) error {
	for _, r := range f {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func row(id int64, v ...float32) store.EmbeddingRow {
	return store.EmbeddingRow{ID: id, SectionID: id * 10, Vector: v}
}

func ids(ms []Match) []int64 {
	out := make([]int64, len(ms))
	for i, m := range ms {
		out[i] = m.EmbeddingID
	}
	return out
}

func TestKNN_TopKDescending(t *testing.T) {
	var rows fakeScanner
	for i := range 10 {
		angle := float64(i) * math.Pi / 20
		rows = append(rows, row(int64(i+1), float32(math.Cos(angle)), float32(math.Sin(angle))))
	}

	res, err := KNN(context.Background(), rows, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, res.Matches, 3)
	assert.Equal(t, []int64{1, 2, 3}, ids(res.Matches))
	for i := 1; i < len(res.Matches); i++ {
		assert.GreaterOrEqual(t, res.Matches[i-1].Score, res.Matches[i].Score)
	}
	assert.InDelta(t, 1.0, res.Matches[0].Score, 1e-6)
	assert.Equal(t, int64(10), res.Matches[0].SectionID)
	assert.Equal(t, 10, res.Scanned)
}

func TestKNN_TiesKeepStorageOrder(t *testing.T) {
	rows := fakeScanner{
		row(5, 1, 1),
		row(2, 1, 1),
		row(7, -1, 0),
		row(9, 1, 1),
	}

	res, err := KNN(context.Background(), rows, []float32{1, 1}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5, 9}, ids(res.Matches))

	res, err = KNN(context.Background(), rows, []float32{1, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5}, ids(res.Matches))
}

func TestKNN_SkipsMismatchedDimensions(t *testing.T) {
	rows := fakeScanner{row(1, 1, 0), row(2, 1, 0, 0), row(3, 0, 1)}
	res, err := KNN(context.Background(), rows, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids(res.Matches))
	assert.Equal(t, 1, res.Mismatched)
	assert.Equal(t, 3, res.Scanned)
}

func TestKNN_ZeroVectorScoresZero(t *testing.T) {
	rows := fakeScanner{row(1, 0, 0)}
	res, err := KNN(context.Background(), rows, []float32{0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.False(t, math.IsNaN(res.Matches[0].Score))
	assert.Zero(t, res.Matches[0].Score)
}

func TestKNN_Degenerate(t *testing.T) {
	rows := fakeScanner{row(1, 1, 0)}
	res, err := KNN(context.Background(), rows, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)

	res, err = KNN(context.Background(), rows, nil, 3)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)

	res, err = KNN(context.Background(), fakeScanner{}, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
}

type failingScanner struct{}

func (failingScanner) ScanEmbeddings(context.Context, func(store.EmbeddingRow) error) error {
	return errors.New("database is locked")
}

func TestKNN_ScanError(t *testing.T) {
	_, err := KNN(context.Background(), failingScanner{}, []float32{1}, 3)
	assert.Error(t, err)
}

func TestKNN_MatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	randVec := func() []float32 {
		v := make([]float32, 12)
		for i := range v {
			v[i] = float32(rng.NormFloat64())
		}
		return v
	}

	var rows fakeScanner
	for i := range 300 {
		rows = append(rows, row(int64(i+1), randVec()...))
	}
	query := randVec()

	type scored struct {
		id    int64
		score float64
	}
	all := make([]scored, len(rows))
	for i, r := range rows {
		all[i] = scored{r.ID, vector.Cosine(query, r.Vector)}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	for _, k := range []int{1, 7, 20, 300, 500} {
		res, err := KNN(context.Background(), rows, query, k)
		require.NoError(t, err)
		want := min(k, len(rows))
		require.Len(t, res.Matches, want)
		for i := range want {
			assert.Equal(t, all[i].id, res.Matches[i].EmbeddingID, "k=%d rank=%d", k, i)
			assert.InDelta(t, all[i].score, res.Matches[i].Score, 1e-12)
		}
	}
}

func TestClampK(t *testing.T) {
	assert.Equal(t, 1, ClampK(-5))
	assert.Equal(t, 1, ClampK(0))
	assert.Equal(t, 5, ClampK(5))
	assert.Equal(t, 20, ClampK(20))
	assert.Equal(t, 20, ClampK(1000))
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "abc", Snippet("abc", 400))
	assert.Equal(t, "ab", Snippet("abc", 2))
	assert.Equal(t, "", Snippet("abc", 0))
	assert.Equal(t, "Ibära", Snippet("Ibära ya", 5))

	long := strings.Repeat("ö", 1000)
	assert.Equal(t, 400, utf8.RuneCountInString(Snippet(long, SnippetLen)))
}

// axisEmbedder maps each known text to a fixed vector.
type axisEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (a *axisEmbedder) Model() string { return "axis" }

func (a *axisEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	a.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := a.vectors[t]
		if !ok {
			return nil, fmt.Errorf("unknown text %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func seedStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	secs := make([]store.NewSection, 10)
	for i := range secs {
		angle := float64(i) * math.Pi / 18
		secs[i] = store.NewSection{
			Heading: fmt.Sprintf("Article %d", i),
			Text:    fmt.Sprintf("Section %d ", i) + strings.Repeat("é", 500),
			Vector:  []float32{float32(math.Cos(angle)), float32(math.Sin(angle)), 0},
		}
	}
	_, err = s.SaveDocument(context.Background(), store.SaveInput{
		Title: "Katiba", Slug: "katiba", DocType: store.DocTypeConstitution,
		SourcePath: "/corpus/katiba.txt", Model: "axis", Sections: secs,
	})
	require.NoError(t, err)
	return s
}

func TestService_Query(t *testing.T) {
	s := seedStore(t)
	emb := &axisEmbedder{vectors: map[string][]float32{"rights": {1, 0, 0}}}
	logger, _ := test.NewNullLogger()
	svc := NewService(s, emb, logger)

	resp, err := svc.Query(context.Background(), "  rights ", 3)
	require.NoError(t, err)
	assert.Equal(t, "rights", resp.Query)
	assert.Equal(t, 3, resp.K)
	require.Len(t, resp.Results, 3)

	for i, h := range resp.Results {
		assert.Equal(t, i, h.SectionIndex)
		assert.Equal(t, fmt.Sprintf("Article %d", i), h.Heading)
		assert.Equal(t, "Katiba", h.DocumentTitle)
		assert.Equal(t, "katiba", h.DocumentSlug)
		assert.Equal(t, store.DocTypeConstitution, h.DocType)
		assert.NotZero(t, h.SectionID)
		assert.Equal(t, SnippetLen, utf8.RuneCountInString(h.Snippet))
		if i > 0 {
			assert.GreaterOrEqual(t, resp.Results[i-1].Score, h.Score)
		}
	}
}

func TestService_EmptyQuery(t *testing.T) {
	s := seedStore(t)
	emb := &axisEmbedder{}
	logger, _ := test.NewNullLogger()
	svc := NewService(s, emb, logger)

	resp, err := svc.Query(context.Background(), " \t ", 50)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.NotNil(t, resp.Results)
	assert.Equal(t, 20, resp.K)
	assert.Zero(t, emb.calls)
}

func TestService_ClampsK(t *testing.T) {
	s := seedStore(t)
	emb := &axisEmbedder{vectors: map[string][]float32{"q": {0, 1, 0}}}
	logger, _ := test.NewNullLogger()
	svc := NewService(s, emb, logger)

	resp, err := svc.Query(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, 9, resp.Results[0].SectionIndex)

	resp, err = svc.Query(context.Background(), "q", 99)
	require.NoError(t, err)
	assert.Equal(t, 20, resp.K)
	assert.Len(t, resp.Results, 10)
}

func TestService_WarnsOnDimensionMismatch(t *testing.T) {
	s := seedStore(t)
	emb := &axisEmbedder{vectors: map[string][]float32{"q": {1, 0}}}
	logger, hook := test.NewNullLogger()
	svc := NewService(s, emb, logger)

	resp, err := svc.Query(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, 10, entry.Data["skipped"])
}

func TestService_EmbedError(t *testing.T) {
	s := seedStore(t)
	logger, _ := test.NewNullLogger()
	svc := NewService(s, &axisEmbedder{}, logger)

	_, err := svc.Query(context.Background(), "unknown", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed query")
}
