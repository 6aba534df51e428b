package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkmesh/inkmesh/storage"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Save("book-1", "outline", []byte("chapter plan")))

	data, err := s.Load("book-1", "outline")
	require.NoError(t, err)
	assert.Equal(t, []byte("chapter plan"), data)
}

func TestLoadMissingMapsToErrNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.Load("book-1", "outline")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListComponents(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Save("book-1", "outline", []byte("x")))
	require.NoError(t, s.Save("book-1", "chapter_1", []byte("y")))

	keys, err := s.List("book-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"outline", "chapter_1"}, keys)

	empty, err := s.List("unknown-book")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDelete(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Save("book-1", "outline", []byte("x")))
	require.NoError(t, s.Delete("book-1", "outline"))
	assert.ErrorIs(t, s.Delete("book-1", "outline"), storage.ErrNotFound)
}

func TestSanitizedKeysStayUnderRoot(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save("book-1", "../escape", []byte("x")))
	require.NoError(t, s.Save("book-1", "cover image", []byte("y")))

	// Nothing may be written outside the root.
	_, err = os.Stat(filepath.Join(dir, "..", "escape"))
	assert.True(t, os.IsNotExist(err))

	data, err := s.Load("book-1", "cover image")
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), data)
}

func TestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save("book-1", "outline", []byte("persisted")))

	reopened, err := New(dir)
	require.NoError(t, err)
	data, err := reopened.Load("book-1", "outline")
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), data)
}
