// Package search ranks stored sections by cosine similarity to a query.
package search

import (
	"container/heap"
	"context"
	"sort"

	"civicdocs/internal/store"
	"civicdocs/internal/vector"
)

// Scanner streams stored embeddings in a stable order.
type Scanner interface {
	ScanEmbeddings(ctx context.Context, fn func(store.EmbeddingRow) error) error
}

// Match is one scored embedding.
type Match struct {
	EmbeddingID int64
	SectionID   int64
	Score       float64
}

// KNNResult holds the top matches and what the scan had to skip.
type KNNResult struct {
	Matches []Match
	Scanned int
	// Mismatched counts embeddings whose dimension differs from the query.
	Mismatched int
}

// worse orders matches so the heap root is the one to evict first: lower
// score, then on equal score the later-stored embedding.
func worse(a, b Match) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.EmbeddingID > b.EmbeddingID
}

type matchHeap []Match

func (h matchHeap) Len() int           { return len(h) }
func (h matchHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h matchHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *matchHeap) Push(x any)        { *h = append(*h, x.(Match)) }
func (h *matchHeap) Pop() any {
	old := *h
	n := len(old)
	m := old[n-1]
	*h = old[:n-1]
	return m
}

// KNN scans every embedding and returns the k most similar to query by
// descending cosine score. Equal scores keep storage order (lower embedding
// ID first). Embeddings of a different dimension are skipped.
func KNN(ctx context.Context, s Scanner, query []float32, k int) (*KNNResult, error) {
	res := &KNNResult{}
	if k <= 0 || len(query) == 0 {
		return res, nil
	}
	qNorm := vector.Norm(query)

	h := make(matchHeap, 0, k)
	err := s.ScanEmbeddings(ctx, func(row store.EmbeddingRow) error {
		res.Scanned++
		if len(row.Vector) != len(query) {
			res.Mismatched++
			return nil
		}
		m := Match{
			EmbeddingID: row.ID,
			SectionID:   row.SectionID,
			Score:       vector.CosineWithNorm(query, qNorm, row.Vector),
		}
		if h.Len() < k {
			heap.Push(&h, m)
			return nil
		}
		if worse(h[0], m) {
			h[0] = m
			heap.Fix(&h, 0)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Matches = []Match(h)
	sort.Slice(res.Matches, func(i, j int) bool { return worse(res.Matches[j], res.Matches[i]) })
	return res, nil
}
