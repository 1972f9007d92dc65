package store

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DocType classifies a Document.
type DocType string

const (
	DocTypeConstitution DocType = "constitution"
	DocTypeBill         DocType = "bill"
	DocTypeBrief        DocType = "brief"
	DocTypeOther        DocType = "other"
)

// DocTypes lists every valid DocType.
var DocTypes = []DocType{DocTypeConstitution, DocTypeBill, DocTypeBrief, DocTypeOther}

// Valid reports whether t is one of DocTypes.
func (t DocType) Valid() bool {
	for _, d := range DocTypes {
		if t == d {
			return true
		}
	}
	return false
}

// Document is one ingested source file.
type Document struct {
	ID          int64        `db:"id" json:"id"`
	Title       string       `db:"title" json:"title"`
	Slug        string       `db:"slug" json:"slug"`
	DocType     DocType      `db:"doc_type" json:"doc_type"`
	SourcePath  string       `db:"source_path" json:"source_path"`
	PublishedAt sql.NullTime `db:"published_at" json:"-"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// Meta is free-form section metadata, stored as a JSON object.
type Meta map[string]any

// Value implements driver.Valuer.
func (m Meta) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Meta) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("meta: unsupported source type %T", src)
	}
	return json.Unmarshal(data, (*map[string]any)(m))
}

// Section is one chunk of a Document's text.
type Section struct {
	ID         int64  `db:"id" json:"id"`
	DocumentID int64  `db:"document_id" json:"document_id"`
	Index      int    `db:"idx" json:"index"`
	Heading    string `db:"heading" json:"heading,omitempty"`
	Text       string `db:"text" json:"text"`
	Meta       Meta   `db:"meta" json:"meta,omitempty"`
}

// NewSection is a section to persist together with its embedding.
type NewSection struct {
	Heading string
	Text    string
	Meta    Meta
	Vector  []float32
}

// SaveInput describes one per-file write. A zero DocumentID creates the
// document; otherwise its metadata is refreshed and its sections replaced.
type SaveInput struct {
	DocumentID int64
	Title      string
	Slug       string
	DocType    DocType
	SourcePath string
	Model      string
	Sections   []NewSection
}

// EmbeddingRow is a stored vector as seen by the search scan.
type EmbeddingRow struct {
	ID        int64
	SectionID int64
	Vector    []float32
}

// SectionHit is a section joined with its owning document.
type SectionHit struct {
	SectionID     int64   `db:"section_id"`
	SectionIndex  int     `db:"idx"`
	Heading       string  `db:"heading"`
	Text          string  `db:"text"`
	DocumentTitle string  `db:"title"`
	DocumentSlug  string  `db:"slug"`
	DocType       DocType `db:"doc_type"`
}

// DocumentSummary is a document with its section count.
type DocumentSummary struct {
	Document
	Sections int `db:"sections" json:"sections"`
}

// ModelCount is the number of embeddings stored per model.
type ModelCount struct {
	Model string `db:"model" json:"model"`
	Count int    `db:"n" json:"count"`
}

// Stats summarizes the corpus.
type Stats struct {
	Documents         int          `json:"documents"`
	Sections          int          `json:"sections"`
	Embeddings        int          `json:"embeddings"`
	MissingEmbeddings int          `json:"missing_embeddings"`
	BadVectors        int          `json:"bad_vectors"`
	Models            []ModelCount `json:"models"`
}
