package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/studyrag/internal/core/domain"
)

func TestStore_RootedOpen(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "alice"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "alice", "notes.md"), []byte("# Notes"), 0o600))

	store, err := NewStore(root)
	require.NoError(t, err)

	r, err := store.Open(context.Background(), "alice/notes.md")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, r.Close())
	require.NoError(t, err)
	assert.Equal(t, "# Notes", string(data))

	_, err = store.Open(context.Background(), "alice/missing.md")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.Open(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = store.Open(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStore_Unrooted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	store, err := NewStore("")
	require.NoError(t, err)

	r, err := store.Open(context.Background(), path)
	require.NoError(t, err)
	r.Close()

	_, err = store.Open(context.Background(), "relative.txt")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStore_Locator(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(root)
	require.NoError(t, err)

	loc, err := store.Locator(filepath.Join(root, "inbox", "week1.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "inbox/week1.pdf", loc)

	resolved, err := store.Resolve(loc)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "inbox", "week1.pdf"), resolved)

	_, err = store.Locator(filepath.Dir(root))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
