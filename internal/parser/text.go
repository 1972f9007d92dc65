package parser

import (
	"context"
	"os"
	"strings"
)

// extractText reads the file as UTF-8, dropping invalid byte sequences.
func extractText(_ context.Context, path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Document{Text: strings.ToValidUTF8(string(data), "")}, nil
}
