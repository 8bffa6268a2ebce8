package docs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDirSource_ListDocuments(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "guides/sync.md", "---\ntitle: Sync\narticle_type: jolliscript\n---\nrun\n")
	writeDoc(t, dir, "intro.md", "# Intro\n")
	writeDoc(t, dir, "broken.md", "---\non: [unclosed\n---\n")
	writeDoc(t, dir, "notes.txt", "ignored")

	src := NewDirSource(dir, nil)
	docs, err := src.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "broken.md", docs[0].ID)
	assert.Equal(t, ArticleTypeDefault, docs[0].ArticleType)

	assert.Equal(t, "guides/sync.md", docs[1].ID)
	assert.Equal(t, "Sync", docs[1].Title)
	assert.True(t, docs[1].Executable())
	assert.Equal(t, DocsJRNPrefix+"/guides/sync", docs[1].JRN)

	assert.Equal(t, "intro", docs[2].Title)
	assert.False(t, docs[2].Executable())
}

func TestDirSource_CachesUntilInvalidated(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.md", "# A\n")
	src := NewDirSource(dir, nil)
	ctx := context.Background()

	_, err := src.ListDocuments(ctx)
	require.NoError(t, err)
	writeDoc(t, dir, "b.md", "# B\n")

	docs, err := src.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1, "served from cache")
	assert.Equal(t, int64(1), src.Loads())

	src.Invalidate()
	docs, err = src.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestDirSource_WatchInvalidatesOnChange(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.md", "# A\n")
	src := NewDirSource(dir, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- src.Watch(ctx, ready) }()
	<-ready

	docs, err := src.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	writeDoc(t, dir, "b.md", "# B\n")
	require.Eventually(t, func() bool {
		docs, err := src.ListDocuments(ctx)
		return err == nil && len(docs) == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestDirSource_MissingDir(t *testing.T) {
	src := NewDirSource(filepath.Join(t.TempDir(), "missing"), nil)
	_, err := src.ListDocuments(context.Background())
	assert.Error(t, err)
}

func TestStaticSource(t *testing.T) {
	src := NewStaticSource(Document{ID: "a"})
	src.Add(Document{ID: "b"})

	docs, err := src.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	docs[0].ID = "mutated"

	again, err := src.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", again[0].ID)
}
