package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessally/accessally/internal/identity"
)

func runConformance(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	ann := identity.Token("ann")
	bob := identity.Token("bob")

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.Get(ctx, NamespaceHistory, identity.Token("nobody"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("PutGetOverwrite", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, NamespaceHistory, ann, []byte("first")))
		require.NoError(t, s.Put(ctx, NamespaceHistory, ann, []byte("second")))
		got, err := s.Get(ctx, NamespaceHistory, ann)
		require.NoError(t, err)
		assert.Equal(t, "second", string(got))
	})

	t.Run("NamespacesAreIndependent", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, NamespaceNotes, bob, []byte("notes")))
		_, err := s.Get(ctx, NamespaceHistory, bob)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("EmptyBlob", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, NamespaceNotes, ann, nil))
		got, err := s.Get(ctx, NamespaceNotes, ann)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Delete", func(t *testing.T) {
		existed, err := s.Delete(ctx, NamespaceNotes, bob)
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = s.Delete(ctx, NamespaceNotes, bob)
		require.NoError(t, err)
		assert.False(t, existed)

		_, err = s.Get(ctx, NamespaceNotes, bob)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("InvalidKey", func(t *testing.T) {
		assert.ErrorIs(t, s.Put(ctx, NamespaceNotes, "", []byte("x")), identity.ErrInvalid)
		_, err := s.Get(ctx, NamespaceNotes, "")
		assert.ErrorIs(t, err, identity.ErrInvalid)
		_, err = s.Delete(ctx, NamespaceNotes, "")
		assert.ErrorIs(t, err, identity.ErrInvalid)
	})
}

func TestInMemoryStore(t *testing.T) {
	runConformance(t, NewInMemoryStore())
}

func TestFileStore(t *testing.T) {
	root := t.TempDir()
	s, err := New(context.Background(), Config{
		Driver:     "file",
		HistoryDir: filepath.Join(root, "history"),
		NotesDir:   filepath.Join(root, "notes"),
	})
	require.NoError(t, err)
	defer s.Close()

	runConformance(t, s)
}

func TestFileStoreLayout(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(map[Namespace]FileLayout{
		NamespaceHistory: {Dir: filepath.Join(root, "history"), Prefix: "history", Ext: ".csv"},
		NamespaceNotes:   {Dir: filepath.Join(root, "notes"), Prefix: "notes", Ext: ".txt"},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, NamespaceHistory, "ann", []byte("h")))
	require.NoError(t, s.Put(ctx, NamespaceNotes, "ann", []byte("n")))

	assert.FileExists(t, filepath.Join(root, "history", "history_ann.csv"))
	assert.FileExists(t, filepath.Join(root, "notes", "notes_ann.txt"))

	entries, err := os.ReadDir(filepath.Join(root, "history"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStoreRequiresDirectories(t *testing.T) {
	_, err := NewFileStore(map[Namespace]FileLayout{NamespaceHistory: {Prefix: "history"}})
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "accessally.db")
	s, err := New(context.Background(), Config{Driver: "sqlite", SQLitePath: path})
	require.NoError(t, err)
	defer s.Close()

	runConformance(t, s)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, url)
	require.NoError(t, err)
	defer s.Close()
	_, _ = s.pool.Exec(ctx, `DELETE FROM records WHERE key IN ('ann', 'bob', 'nobody')`)

	runConformance(t, s)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	s, err := NewRedisStore(ctx, addr, "", 0)
	require.NoError(t, err)
	defer s.Close()
	for _, ns := range []Namespace{NamespaceHistory, NamespaceNotes} {
		for _, k := range []identity.Token{"ann", "bob", "nobody"} {
			_, _ = s.Delete(ctx, ns, k)
		}
	}

	runConformance(t, s)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "cassandra"})
	assert.Error(t, err)
}
