package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// ErrNotFound is returned when a document slug does not exist.
var ErrNotFound = errors.New("not found")

// Store provides persistence for documents, sections and embeddings.
type Store interface {
	// DocumentBySlug returns the document with the given slug, or nil if none.
	DocumentBySlug(ctx context.Context, slug string) (*Document, error)
	// UpdateDocumentMeta sets doc_type and source_path on an existing document.
	UpdateDocumentMeta(ctx context.Context, id int64, docType DocType, sourcePath string) error
	// SaveDocument writes a document with its sections and embeddings in one
	// transaction and returns the document ID.
	SaveDocument(ctx context.Context, in SaveInput) (int64, error)
	// ListSections returns up to limit sections with ID greater than afterID.
	ListSections(ctx context.Context, afterID int64, limit int) ([]Section, error)
	// CountSections returns the total number of sections.
	CountSections(ctx context.Context) (int, error)
	// UpsertEmbeddings creates or overwrites the embeddings of the given sections.
	UpsertEmbeddings(ctx context.Context, model string, sectionIDs []int64, vectors [][]float32) error
	// ScanEmbeddings calls fn for every stored embedding in ID order.
	ScanEmbeddings(ctx context.Context, fn func(EmbeddingRow) error) error
	// SectionsByID loads sections joined with their documents.
	SectionsByID(ctx context.Context, ids []int64) (map[int64]SectionHit, error)
	// ListDocuments returns documents with section counts, optionally filtered by type.
	ListDocuments(ctx context.Context, docType DocType) ([]DocumentSummary, error)
	// GetDocument returns a document and its sections in index order.
	GetDocument(ctx context.Context, slug string) (*Document, []Section, error)
	// DeleteDocument removes a document; sections and embeddings cascade.
	DeleteDocument(ctx context.Context, slug string) error
	// Stats summarizes corpus size and integrity.
	Stats(ctx context.Context) (*Stats, error)
	// GetMeta returns a metadata value by key, or "" if not set.
	GetMeta(ctx context.Context, key string) (string, error)
	// SetMeta sets a metadata key-value pair.
	SetMeta(ctx context.Context, key, value string) error
	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite + sqlite-vec.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open creates or opens a SQLite database at the given path and initializes the schema.
func Open(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an already-initialized database handle.
func NewWithDB(db *sqlx.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SQLiteStore) DocumentBySlug(ctx context.Context, slug string) (*Document, error) {
	var d Document
	err := s.db.GetContext(ctx, &d, "SELECT * FROM documents WHERE slug = ?", slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *SQLiteStore) UpdateDocumentMeta(ctx context.Context, id int64, docType DocType, sourcePath string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE documents SET doc_type = ?, source_path = ?, updated_at = ? WHERE id = ?",
		docType, sourcePath, s.now(), id,
	)
	return err
}

func (s *SQLiteStore) SaveDocument(ctx context.Context, in SaveInput) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := s.now()
	docID := in.DocumentID
	if docID == 0 {
		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO documents (title, slug, doc_type, source_path, created_at, updated_at)
			VALUES (:title, :slug, :doc_type, :source_path, :created_at, :updated_at)`,
			&Document{
				Title:      in.Title,
				Slug:       in.Slug,
				DocType:    in.DocType,
				SourcePath: in.SourcePath,
				CreatedAt:  now,
				UpdatedAt:  now,
			},
		)
		if err != nil {
			return 0, fmt.Errorf("insert document %s: %w", in.Slug, err)
		}
		if docID, err = res.LastInsertId(); err != nil {
			return 0, err
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			"UPDATE documents SET doc_type = ?, source_path = ?, updated_at = ? WHERE id = ?",
			in.DocType, in.SourcePath, now, docID,
		); err != nil {
			return 0, fmt.Errorf("update document %d: %w", docID, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM sections WHERE document_id = ?", docID); err != nil {
			return 0, fmt.Errorf("delete sections of document %d: %w", docID, err)
		}
	}

	secStmt, err := tx.PreparexContext(ctx,
		"INSERT INTO sections (document_id, idx, heading, text, meta) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return 0, err
	}
	defer secStmt.Close()

	embStmt, err := tx.PreparexContext(ctx,
		"INSERT INTO embeddings (section_id, model, vector, dim, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return 0, err
	}
	defer embStmt.Close()

	for i, sec := range in.Sections {
		res, err := secStmt.ExecContext(ctx, docID, i, sec.Heading, sec.Text, sec.Meta)
		if err != nil {
			return 0, fmt.Errorf("insert section %d: %w", i, err)
		}
		secID, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		blob, err := Pack(sec.Vector)
		if err != nil {
			return 0, fmt.Errorf("serialize embedding for section %d: %w", i, err)
		}
		if _, err := embStmt.ExecContext(ctx, secID, in.Model, blob, len(sec.Vector), now); err != nil {
			return 0, fmt.Errorf("insert embedding for section %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return docID, nil
}

func (s *SQLiteStore) ListSections(ctx context.Context, afterID int64, limit int) ([]Section, error) {
	var out []Section
	err := s.db.SelectContext(ctx, &out,
		"SELECT id, document_id, idx, heading, text, meta FROM sections WHERE id > ? ORDER BY id LIMIT ?",
		afterID, limit,
	)
	return out, err
}

func (s *SQLiteStore) CountSections(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM sections")
	return n, err
}

func (s *SQLiteStore) UpsertEmbeddings(ctx context.Context, model string, sectionIDs []int64, vectors [][]float32) error {
	if len(sectionIDs) != len(vectors) {
		return fmt.Errorf("mismatched section IDs (%d) and embeddings (%d)", len(sectionIDs), len(vectors))
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO embeddings (section_id, model, vector, dim, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(section_id) DO UPDATE SET
			model = excluded.model, vector = excluded.vector, dim = excluded.dim`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := s.now()
	for i, sid := range sectionIDs {
		blob, err := Pack(vectors[i])
		if err != nil {
			return fmt.Errorf("serialize embedding for section %d: %w", sid, err)
		}
		if _, err := stmt.ExecContext(ctx, sid, model, blob, len(vectors[i]), now); err != nil {
			return fmt.Errorf("upsert embedding for section %d: %w", sid, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ScanEmbeddings(ctx context.Context, fn func(EmbeddingRow) error) error {
	rows, err := s.db.QueryxContext(ctx, "SELECT id, section_id, vector FROM embeddings ORDER BY id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			row  EmbeddingRow
			blob []byte
		)
		if err := rows.Scan(&row.ID, &row.SectionID, &blob); err != nil {
			return err
		}
		if row.Vector, err = Unpack(blob); err != nil {
			return fmt.Errorf("embedding %d: %w", row.ID, err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) SectionsByID(ctx context.Context, ids []int64) (map[int64]SectionHit, error) {
	out := make(map[int64]SectionHit, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`
		SELECT s.id AS section_id, s.idx, s.heading, s.text, d.title, d.slug, d.doc_type
		FROM sections s
		JOIN documents d ON d.id = s.document_id
		WHERE s.id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var hits []SectionHit
	if err := s.db.SelectContext(ctx, &hits, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, h := range hits {
		out[h.SectionID] = h
	}
	return out, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, docType DocType) ([]DocumentSummary, error) {
	query := `
		SELECT d.*, COUNT(s.id) AS sections
		FROM documents d
		LEFT JOIN sections s ON s.document_id = d.id`
	var args []any
	if docType != "" {
		query += " WHERE d.doc_type = ?"
		args = append(args, docType)
	}
	query += " GROUP BY d.id ORDER BY d.title, d.id"

	var out []DocumentSummary
	err := s.db.SelectContext(ctx, &out, query, args...)
	return out, err
}

func (s *SQLiteStore) GetDocument(ctx context.Context, slug string) (*Document, []Section, error) {
	d, err := s.DocumentBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	if d == nil {
		return nil, nil, fmt.Errorf("document %q: %w", slug, ErrNotFound)
	}
	var sections []Section
	err = s.db.SelectContext(ctx, &sections,
		"SELECT id, document_id, idx, heading, text, meta FROM sections WHERE document_id = ? ORDER BY idx",
		d.ID,
	)
	if err != nil {
		return nil, nil, err
	}
	return d, sections, nil
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE slug = ?", slug)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("document %q: %w", slug, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	// vec_length rejects blobs that are not whole float32 arrays, so those
	// are counted as bad before it is called.
	err := s.db.QueryRowxContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM documents),
			(SELECT COUNT(*) FROM sections),
			(SELECT COUNT(*) FROM embeddings),
			(SELECT COUNT(*) FROM sections s
				LEFT JOIN embeddings e ON e.section_id = s.id
				WHERE e.id IS NULL),
			(SELECT COUNT(*) FROM embeddings WHERE
				CASE
					WHEN length(vector) = 0 OR length(vector) % 4 != 0 THEN 1
					WHEN vec_length(vector) != dim THEN 1
					ELSE 0
				END = 1)
	`).Scan(&st.Documents, &st.Sections, &st.Embeddings, &st.MissingEmbeddings, &st.BadVectors)
	if err != nil {
		return nil, err
	}
	err = s.db.SelectContext(ctx, &st.Models,
		"SELECT model, COUNT(*) AS n FROM embeddings GROUP BY model ORDER BY model")
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
