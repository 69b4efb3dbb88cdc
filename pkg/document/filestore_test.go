package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir(), nil, nil)
	require.NoError(t, err)

	doc := New("doc-1", "Untitled", "user-1")
	doc.Content = "hello world"
	doc.Version = 3

	require.NoError(t, store.Save(ctx, doc))

	loaded, ok, err := store.Load(ctx, "doc-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello world", loaded.Content)
	assert.Equal(t, 3, loaded.Version)
	assert.Empty(t, loaded.ActiveUsers, "presence must not survive a reload")
}

func TestFileStoreLoadMissingReturnsNotOK(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), nil, nil)
	require.NoError(t, err)

	_, ok, err := store.Load(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil, nil)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), New("doc-2", "Untitled", "user-1")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc-2.json", entries[0].Name())
}

func TestFileStoreDeleteAndCount(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir(), nil, nil)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, New("a", "A", "u")))
	require.NoError(t, store.Save(ctx, New("b", "B", "u")))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, store.Delete(ctx, "a"))
	ids, err := store.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}

func TestFileStoreDeleteMissingIsNotError(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), nil, nil)
	require.NoError(t, err)
	assert.NoError(t, store.Delete(context.Background(), "never-existed"))
}

func TestNewFileStoreCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "store")
	_, err := NewFileStore(dir, nil, nil)
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
