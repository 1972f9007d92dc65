package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var docExts = map[string]bool{"pdf": true, "docx": true, "html": true, "htm": true, "txt": true, "md": true}

func touch(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func relPaths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	return out
}

func TestWalk_FiltersByExtension(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{
		"constitution.pdf",
		"bills/Finance_Bill.DOCX",
		"bills/notes.txt",
		"briefs/brief.htm",
		"briefs/image.png",
		"briefs/deep/more.md",
		"README",
	} {
		touch(t, root, rel)
	}

	files, err := Walk(root, Options{Extensions: docExts})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"bills/Finance_Bill.DOCX",
		"bills/notes.txt",
		"briefs/brief.htm",
		"briefs/deep/more.md",
		"constitution.pdf",
	}, relPaths(files))
	for _, f := range files {
		assert.True(t, filepath.IsAbs(f.Path))
	}
}

func TestWalk_PatternIsCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "Bills/Finance_Bill_2024.txt")
	touch(t, root, "Bills/Land.txt")
	touch(t, root, "other.txt")

	for _, pattern := range []string{"finance", "FINANCE", "Finance_Bill"} {
		files, err := Walk(root, Options{Extensions: docExts, Pattern: pattern})
		require.NoError(t, err)
		assert.Equal(t, []string{"Bills/Finance_Bill_2024.txt"}, relPaths(files), pattern)
	}

	files, err := Walk(root, Options{Extensions: docExts, Pattern: "bills/"})
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestWalk_PatternIgnoresRootPath(t *testing.T) {
	root := filepath.Join(t.TempDir(), "finance")
	touch(t, root, "land_act.txt")
	touch(t, root, "finance/budget.txt")

	files, err := Walk(root, Options{Extensions: docExts, Pattern: "finance"})
	require.NoError(t, err)
	assert.Equal(t, []string{"finance/budget.txt"}, relPaths(files))

	files, err = Walk(root, Options{Extensions: docExts, Pattern: "land"})
	require.NoError(t, err)
	assert.Equal(t, []string{"land_act.txt"}, relPaths(files))
}

func TestWalk_DefaultIgnores(t *testing.T) {
	root := t.TempDir()
	touch(t, root, ".git/notes.txt")
	touch(t, root, "node_modules/pkg/readme.md")
	touch(t, root, "kept.txt")

	files, err := Walk(root, Options{Extensions: docExts})
	require.NoError(t, err)
	assert.Equal(t, []string{"kept.txt"}, relPaths(files))

	_, err = os.Stat(filepath.Join(root, IgnoreFile))
	assert.True(t, os.IsNotExist(err), "walk must not create an ignore file")
}

func TestWalk_IgnoreFile(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "archive/2010/old.txt")
	touch(t, root, "drafts/wip.txt")
	touch(t, root, "final/act.txt")
	require.NoError(t, os.WriteFile(filepath.Join(root, IgnoreFile), []byte("# comment\narchive/2010\ndraft*\n"), 0o644))

	files, err := Walk(root, Options{Extensions: docExts})
	require.NoError(t, err)
	assert.Equal(t, []string{"final/act.txt"}, relPaths(files))
}

func TestWalk_BadRoot(t *testing.T) {
	_, err := Walk(filepath.Join(t.TempDir(), "missing"), Options{Extensions: docExts})
	assert.ErrorIs(t, err, ErrNotDirectory)

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = Walk(file, Options{Extensions: docExts})
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestMatchesIgnore(t *testing.T) {
	tests := []struct {
		name, rel string
		patterns  []string
		want      bool
	}{
		{"node_modules", "a/node_modules", []string{"node_modules"}, true},
		{"2010", "archive/2010", []string{"archive/2010"}, true},
		{"drafts", "drafts", []string{"draft*"}, true},
		{"final", "final", []string{"draft*", ".git"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.rel, func(t *testing.T) {
			assert.Equal(t, tc.want, matchesIgnore(tc.name, tc.rel, tc.patterns))
		})
	}
}
