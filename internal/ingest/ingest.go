// Package ingest walks a folder of civic documents and stores each file as a
// Document with embedded Sections.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"civicdocs/internal/chunker"
	"civicdocs/internal/embedder"
	"civicdocs/internal/parser"
	"civicdocs/internal/store"
	"civicdocs/internal/walker"
)

// MetaEmbeddingModel is the store meta key recording the model of the last
// write, used to warn when a run mixes models.
const MetaEmbeddingModel = "embedding_model"

// Status is the outcome of one file.
type Status string

const (
	StatusCreated Status = "created"
	StatusUpdated Status = "updated"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
	StatusPreview Status = "dry-run"
)

// Options control one ingestion run.
type Options struct {
	Root     string
	DocType  store.DocType
	MaxChars int
	Overlap  int
	// Pattern keeps only files whose path below Root contains it, ignoring
	// case.
	Pattern string
	// Replace re-ingests documents that already exist.
	Replace bool
	// DryRun reports what would happen without writing.
	DryRun bool
	// OnFile, if set, is called once per discovered file.
	OnFile func(FileResult)
}

// Validate rejects options that make the run meaningless.
func (o Options) Validate() error {
	if !o.DocType.Valid() {
		return fmt.Errorf("invalid doc type %q", o.DocType)
	}
	if o.MaxChars <= 0 {
		return fmt.Errorf("max chars must be positive, got %d", o.MaxChars)
	}
	if o.Overlap < 0 || o.Overlap >= o.MaxChars {
		return fmt.Errorf("overlap must be in [0, %d), got %d", o.MaxChars, o.Overlap)
	}
	return nil
}

// FileResult describes what happened to one file.
type FileResult struct {
	Path string
	// RelPath is Path relative to the ingestion root, slash-separated.
	RelPath  string
	Title    string
	Slug     string
	Status   Status
	Sections int
	// Reason explains skips and failures.
	Reason string
	Err    error
}

// Stats reports ingestion results.
type Stats struct {
	FilesTotal    int
	Created       int
	Updated       int
	Skipped       int
	Failed        int
	Previewed     int
	SectionsTotal int
}

func (s *Stats) record(r FileResult) {
	switch r.Status {
	case StatusCreated:
		s.Created++
	case StatusUpdated:
		s.Updated++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	case StatusPreview:
		s.Previewed++
	}
	if r.Status == StatusCreated || r.Status == StatusUpdated {
		s.SectionsTotal += r.Sections
	}
}

// Ingester runs ingestion and re-embedding against one store.
type Ingester struct {
	store    store.Store
	parser   *parser.Registry
	embedder embedder.Embedder
	log      logrus.FieldLogger
}

// New creates an Ingester.
func New(s store.Store, p *parser.Registry, e embedder.Embedder, log logrus.FieldLogger) *Ingester {
	return &Ingester{store: s, parser: p, embedder: e, log: log}
}

// Run ingests every supported file under opts.Root, one file at a time. A
// file that cannot be parsed is reported and skipped; embedding and storage
// errors abort the run.
func (ing *Ingester) Run(ctx context.Context, opts Options) (*Stats, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	files, err := walker.Walk(opts.Root, walker.Options{
		Extensions: ing.parser.Extensions(),
		Pattern:    opts.Pattern,
	})
	if err != nil {
		return nil, err
	}

	log := ing.log.WithFields(logrus.Fields{"run_id": uuid.NewString(), "model": ing.embedder.Model()})
	log.WithFields(logrus.Fields{"root": opts.Root, "files": len(files)}).Info("ingest started")
	if !opts.DryRun {
		ing.warnOnModelChange(ctx, log)
	}

	stats := &Stats{FilesTotal: len(files)}
	ch := chunker.New(opts.MaxChars, opts.Overlap)
	wrote := false
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		res, err := ing.processFile(ctx, log.WithField("path", f.RelPath), ch, f, opts)
		if err != nil {
			return stats, fmt.Errorf("%s: %w", f.Path, err)
		}
		stats.record(res)
		if res.Status == StatusCreated || res.Status == StatusUpdated {
			wrote = true
		}
		if opts.OnFile != nil {
			opts.OnFile(res)
		}
	}

	if wrote {
		if err := ing.store.SetMeta(ctx, MetaEmbeddingModel, ing.embedder.Model()); err != nil {
			return stats, fmt.Errorf("set meta: %w", err)
		}
	}
	log.WithFields(logrus.Fields{
		"created": stats.Created,
		"updated": stats.Updated,
		"skipped": stats.Skipped,
		"failed":  stats.Failed,
	}).Info("ingest finished")
	return stats, nil
}

func (ing *Ingester) warnOnModelChange(ctx context.Context, log logrus.FieldLogger) {
	last, err := ing.store.GetMeta(ctx, MetaEmbeddingModel)
	if err != nil {
		log.WithError(err).Warn("read embedding model meta")
		return
	}
	if last != "" && last != ing.embedder.Model() {
		log.WithField("previous_model", last).Warn("embedding model changed; run reembed so all vectors share one model")
	}
}

func (ing *Ingester) processFile(ctx context.Context, log logrus.FieldLogger, ch *chunker.Chunker, f walker.FileInfo, opts Options) (FileResult, error) {
	path := f.Path
	res := FileResult{Path: path, RelPath: f.RelPath}

	doc, err := ing.parser.Parse(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		log.WithError(err).Warn("parse failed")
		res.Status, res.Reason, res.Err = StatusFailed, "parse failed", err
		return res, nil
	}
	if strings.TrimSpace(doc.Text) == "" {
		log.Warn("empty text")
		res.Status, res.Reason = StatusSkipped, "empty text"
		return res, nil
	}

	res.Title = TitleFromPath(path)
	normPath := normalizePath(path)
	target, slug, err := ing.resolveSlug(ctx, BaseSlug(res.Title), normPath)
	if err != nil {
		return res, err
	}
	res.Slug = slug

	if opts.DryRun {
		res.Status = StatusPreview
		res.Sections = len(ch.Chunk(doc.Text))
		switch {
		case target == nil:
			res.Reason = "would create"
		case opts.Replace:
			res.Reason = "would replace"
		default:
			res.Reason = "exists, would skip"
		}
		return res, nil
	}

	if target != nil && !opts.Replace {
		if target.DocType != opts.DocType || normalizePath(target.SourcePath) != normPath {
			if err := ing.store.UpdateDocumentMeta(ctx, target.ID, opts.DocType, path); err != nil {
				return res, fmt.Errorf("update document meta: %w", err)
			}
		}
		log.WithField("slug", slug).Info("document exists, skipping sections")
		res.Status, res.Reason = StatusSkipped, "document exists (use --replace)"
		return res, nil
	}

	spans := ch.Spans(doc.Text)
	if len(spans) == 0 {
		log.Warn("no chunks produced")
		res.Status, res.Reason = StatusSkipped, "no chunks produced"
		return res, nil
	}
	chunks := make([]string, len(spans))
	for i, sp := range spans {
		chunks[i] = sp.Text
	}

	vectors, err := ing.embedder.Embed(ctx, chunks)
	if err != nil {
		return res, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(chunks) {
		return res, fmt.Errorf("embed: %w: expected %d embeddings, got %d",
			embedder.ErrMalformedResponse, len(chunks), len(vectors))
	}

	headings := chunker.AssignHeadings(doc.Text, spans, chunkerHeadings(doc.Headings))
	sections := make([]store.NewSection, len(chunks))
	for i, text := range chunks {
		sections[i] = store.NewSection{
			Heading: headings[i],
			Text:    text,
			Meta:    store.Meta{"format": string(doc.Format), "chars": utf8.RuneCountInString(text)},
			Vector:  vectors[i],
		}
	}

	in := store.SaveInput{
		Title:      res.Title,
		Slug:       slug,
		DocType:    opts.DocType,
		SourcePath: path,
		Model:      ing.embedder.Model(),
		Sections:   sections,
	}
	res.Status = StatusCreated
	if target != nil {
		in.DocumentID = target.ID
		res.Status = StatusUpdated
	}
	if _, err := ing.store.SaveDocument(ctx, in); err != nil {
		return res, fmt.Errorf("save document: %w", err)
	}
	res.Sections = len(sections)
	log.WithFields(logrus.Fields{
		"slug":     slug,
		"sections": len(sections),
		"status":   res.Status,
		"strategy": doc.Strategy,
	}).Info("document stored")
	return res, nil
}

// resolveSlug picks the slug for a source file and returns the document
// already stored under it, if any. The base slug is used unless it belongs
// to a different source path, in which case a path-hash suffix is added.
func (ing *Ingester) resolveSlug(ctx context.Context, base, normPath string) (*store.Document, string, error) {
	target, err := ing.store.DocumentBySlug(ctx, base)
	if err != nil {
		return nil, "", fmt.Errorf("lookup slug %s: %w", base, err)
	}
	if target == nil || normalizePath(target.SourcePath) == normPath {
		return target, base, nil
	}

	slug := hashedSlug(base, normPath)
	target, err = ing.store.DocumentBySlug(ctx, slug)
	if err != nil {
		return nil, "", fmt.Errorf("lookup slug %s: %w", slug, err)
	}
	return target, slug, nil
}

func chunkerHeadings(hs []parser.Heading) []chunker.Heading {
	out := make([]chunker.Heading, len(hs))
	for i, h := range hs {
		out[i] = chunker.Heading{Text: h.Text, Offset: h.Offset}
	}
	return out
}
