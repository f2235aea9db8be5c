package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestHashFileIsContentOnly(t *testing.T) {
	dir := t.TempDir()
	a := writeTempFile(t, dir, "a.mp3", []byte("identical bytes"))
	b := writeTempFile(t, dir, "b.flac", []byte("identical bytes"))
	c := writeTempFile(t, dir, "c.mp3", []byte("different bytes"))

	hashA, err := HashFile(a)
	require.NoError(t, err)
	hashB, err := HashFile(b)
	require.NoError(t, err)
	hashC, err := HashFile(c)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB, "same content must hash the same regardless of name")
	assert.NotEqual(t, hashA, hashC)
	assert.Len(t, hashA, 40)
}

func TestPathForShardsByHashPrefix(t *testing.T) {
	store, err := NewContentStore(t.TempDir())
	require.NoError(t, err)

	hash := "ab34cd56ef7890ab34cd56ef7890ab34cd56ef78"
	path := store.PathFor(hash, "/incoming/Some Track.MP3")

	assert.Equal(t, filepath.Join(store.Root(), "ab", hash+".mp3"), path)
}

func TestPutCopiesAndIsIdempotent(t *testing.T) {
	store, err := NewContentStore(t.TempDir())
	require.NoError(t, err)

	src := writeTempFile(t, t.TempDir(), "track.mp3", []byte("audio payload"))
	hash, err := HashFile(src)
	require.NoError(t, err)

	dest, err := store.Put(src, hash)
	require.NoError(t, err)
	stored, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio payload"), stored)

	// A second Put of the same hash returns the same path without error.
	again, err := store.Put(src, hash)
	require.NoError(t, err)
	assert.Equal(t, dest, again)

	// No temp file debris left behind in the shard directory.
	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestObjectNameIsRelativeSlashPath(t *testing.T) {
	store, err := NewContentStore(t.TempDir())
	require.NoError(t, err)

	hash := "ab34cd56ef7890ab34cd56ef7890ab34cd56ef78"
	dest := store.PathFor(hash, "x.flac")

	assert.Equal(t, "ab/"+hash+".flac", store.ObjectName(dest))
}
