package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultBatchSize is the number of sections embedded per request.
const DefaultBatchSize = 128

// ReembedStats reports a re-embedding pass.
type ReembedStats struct {
	Sections int
	Batches  int
}

// Reembed recomputes the embedding of every section with the current
// embedder, batchSize sections at a time, in section ID order. Existing
// embeddings are overwritten in place and missing ones created, so running
// it twice leaves the store unchanged. onBatch, if set, is called after each
// committed batch with the running and total section counts.
func (ing *Ingester) Reembed(ctx context.Context, batchSize int, onBatch func(done, total int)) (*ReembedStats, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	total, err := ing.store.CountSections(ctx)
	if err != nil {
		return nil, fmt.Errorf("count sections: %w", err)
	}

	model := ing.embedder.Model()
	log := ing.log.WithFields(logrus.Fields{"run_id": uuid.NewString(), "model": model})
	log.WithFields(logrus.Fields{"sections": total, "batch": batchSize}).Info("reembed started")

	stats := &ReembedStats{}
	var after int64
	for {
		page, err := ing.store.ListSections(ctx, after, batchSize)
		if err != nil {
			return stats, fmt.Errorf("list sections: %w", err)
		}
		if len(page) == 0 {
			break
		}

		ids := make([]int64, len(page))
		texts := make([]string, len(page))
		for i, s := range page {
			ids[i] = s.ID
			texts[i] = s.Text
		}
		vectors, err := ing.embedder.Embed(ctx, texts)
		if err != nil {
			return stats, fmt.Errorf("embed batch after section %d: %w", after, err)
		}
		if err := ing.store.UpsertEmbeddings(ctx, model, ids, vectors); err != nil {
			return stats, fmt.Errorf("store batch after section %d: %w", after, err)
		}

		after = ids[len(ids)-1]
		stats.Sections += len(page)
		stats.Batches++
		log.WithFields(logrus.Fields{"batch": stats.Batches, "done": stats.Sections}).Debug("batch committed")
		if onBatch != nil {
			onBatch(stats.Sections, total)
		}
	}

	if stats.Sections > 0 {
		if err := ing.store.SetMeta(ctx, MetaEmbeddingModel, model); err != nil {
			return stats, fmt.Errorf("set meta: %w", err)
		}
	}
	log.WithField("sections", stats.Sections).Info("reembed finished")
	return stats, nil
}
