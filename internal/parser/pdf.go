package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrPDFToolNotFound is returned when the pdftotext binary is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH (install poppler-utils)")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrPDFToolNotFound
	}
	return exec.CommandContext(ctx, name, args...).Output()
}

// extractPDF reads the file with the pure-Go reader. Encrypted files are
// opened with the empty password; pages without a content stream yield "".
func extractPDF(_ context.Context, path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	r, err := pdf.NewReaderEncrypted(f, info.Size(), nil)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	n := r.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return &Document{Text: strings.Join(pages, "\n")}, nil
}

// pdfToText shells out to poppler's pdftotext, which tolerates files the
// pure-Go reader rejects.
func pdfToText(runner CommandRunner) ExtractFunc {
	return func(ctx context.Context, path string) (*Document, error) {
		out, err := runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
		if err != nil {
			if errors.Is(err, ErrPDFToolNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("pdftotext failed: %w", err)
		}
		return &Document{Text: strings.ToValidUTF8(string(out), "")}, nil
	}
}
