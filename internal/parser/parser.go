// Package parser turns source files (PDF, DOCX, HTML, Markdown, plain text)
// into plain text plus any headings the format exposes.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Format identifies how a file is parsed.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

var (
	// ErrNotFound is returned when the input file does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrUnsupported is returned for extensions no format is registered for.
	ErrUnsupported = errors.New("unsupported file type")
)

// Heading is a heading line and the byte offset in Document.Text where its
// text starts.
type Heading struct {
	Text   string
	Offset int
}

// Document is the result of parsing one file.
type Document struct {
	Text     string
	Headings []Heading
	Format   Format
	// Strategy names the extractor that produced Text.
	Strategy string
}

// ExtractFunc extracts a document from the file at path.
type ExtractFunc func(ctx context.Context, path string) (*Document, error)

// New returns a registry with every built-in format registered, using the
// system pdftotext binary as the PDF fallback.
func New() *Registry {
	return NewWithRunner(execRunner{})
}

// NewWithRunner is New with an injected command runner for the PDF fallback.
func NewWithRunner(runner CommandRunner) *Registry {
	r := NewRegistry()
	r.Register(FormatPDF, []string{"pdf"},
		Strategy{Name: "pdf-reader", Extract: extractPDF},
		Strategy{Name: "pdftotext", Extract: pdfToText(runner)},
	)
	r.Register(FormatDOCX, []string{"docx"},
		Strategy{Name: "docx-xml", Extract: extractDOCX},
	)
	r.Register(FormatHTML, []string{"html", "htm"},
		Strategy{Name: "tree-sitter", Extract: extractHTMLTreeSitter},
		Strategy{Name: "x/net/html", Extract: extractHTMLNet},
	)
	r.Register(FormatMarkdown, []string{"md"},
		Strategy{Name: "goldmark", Extract: extractMarkdown},
		Strategy{Name: "raw", Extract: extractText},
	)
	r.Register(FormatText, []string{"txt"},
		Strategy{Name: "raw", Extract: extractText},
	)
	return r
}

// Parse extracts the text of the file at path. Strategies registered for the
// file's format are tried in order; the first one that succeeds wins. A
// strategy that panics counts as failed.
func (r *Registry) Parse(ctx context.Context, path string) (*Document, error) {
	spec := r.lookup(path)
	if spec == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	var errs []error
	for _, s := range spec.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := runStrategy(ctx, s, path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		doc.Format = spec.format
		doc.Strategy = s.Name
		return doc, nil
	}
	return nil, fmt.Errorf("parse %s: %w", path, errors.Join(errs...))
}

func runStrategy(ctx context.Context, s Strategy, path string) (doc *Document, err error) {
	defer func() {
		if p := recover(); p != nil {
			doc, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()
	doc, err = s.Extract(ctx, path)
	if err == nil && doc == nil {
		err = errors.New("no document")
	}
	return doc, err
}
