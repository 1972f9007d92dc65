package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"civicdocs/internal/embedder"
	"civicdocs/internal/store"
)

const (
	DefaultK   = 5
	MaxK       = 20
	SnippetLen = 400
)

// Source is the store surface a Service reads from.
type Source interface {
	Scanner
	SectionsByID(ctx context.Context, ids []int64) (map[int64]store.SectionHit, error)
}

// Hit is one ranked search result.
type Hit struct {
	Score         float64       `json:"score"`
	DocumentTitle string        `json:"document_title"`
	DocumentSlug  string        `json:"document_slug"`
	DocType       store.DocType `json:"doc_type"`
	SectionID     int64         `json:"section_id"`
	SectionIndex  int           `json:"section_index"`
	Heading       string        `json:"heading"`
	Snippet       string        `json:"snippet"`
}

// Response is the query payload shared by the CLI, MCP and TUI surfaces.
type Response struct {
	Results []Hit  `json:"results"`
	Query   string `json:"query"`
	K       int    `json:"k"`
}

// Service answers free-text queries.
type Service struct {
	src      Source
	embedder embedder.Embedder
	log      logrus.FieldLogger
}

// NewService creates a Service.
func NewService(src Source, e embedder.Embedder, log logrus.FieldLogger) *Service {
	return &Service{src: src, embedder: e, log: log}
}

// ClampK bounds k to [1, MaxK].
func ClampK(k int) int {
	return max(1, min(k, MaxK))
}

// Query embeds text and returns the k closest sections. A blank query
// returns an empty result without calling the embedder.
func (s *Service) Query(ctx context.Context, text string, k int) (*Response, error) {
	q := strings.TrimSpace(text)
	resp := &Response{Results: []Hit{}, Query: q, K: ClampK(k)}
	if q == "" {
		return resp, nil
	}

	vecs, err := s.embedder.Embed(ctx, []string{q})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: %w: got %d vectors", embedder.ErrMalformedResponse, len(vecs))
	}

	knn, err := KNN(ctx, s.src, vecs[0], resp.K)
	if err != nil {
		return nil, fmt.Errorf("scan embeddings: %w", err)
	}
	if knn.Mismatched > 0 {
		s.log.WithFields(logrus.Fields{
			"skipped": knn.Mismatched,
			"scanned": knn.Scanned,
			"dim":     len(vecs[0]),
		}).Warn("embeddings with a different dimension were skipped; run reembed")
	}

	ids := make([]int64, len(knn.Matches))
	for i, m := range knn.Matches {
		ids[i] = m.SectionID
	}
	sections, err := s.src.SectionsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}

	for _, m := range knn.Matches {
		sec, ok := sections[m.SectionID]
		if !ok {
			continue
		}
		resp.Results = append(resp.Results, Hit{
			Score:         m.Score,
			DocumentTitle: sec.DocumentTitle,
			DocumentSlug:  sec.DocumentSlug,
			DocType:       sec.DocType,
			SectionID:     sec.SectionID,
			SectionIndex:  sec.SectionIndex,
			Heading:       sec.Heading,
			Snippet:       Snippet(sec.Text, SnippetLen),
		})
	}
	return resp, nil
}

// Snippet returns at most n characters from the start of text.
func Snippet(text string, n int) string {
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}
