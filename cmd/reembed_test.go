package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"civicdocs/internal/embedder"
	"civicdocs/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReembed_EmptyCorpus(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	var out bytes.Buffer
	require.NoError(t, runReembed(ctx, &out, st, embedder.NewStub("stub", 8, 42), 16))
	assert.Equal(t, "No sections found.\n", out.String())
}

func TestRunReembed_ReportsBatches(t *testing.T) {
	st := newTestStore(t)

	var out bytes.Buffer
	require.NoError(t, runReembed(context.Background(), &out, st, embedder.NewStub("stub", 8, 42), 2))
	assert.Contains(t, out.String(), "Re-embedding 3 sections with stub (batch 2)")
	assert.Contains(t, out.String(), "Sections: 3 in 2 batches")
	assert.NotContains(t, out.String(), "No sections found.")
}
