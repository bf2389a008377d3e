package fetch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalize_LocalDirectory(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "a.sql"), []byte("SELECT 1"), 0o644))

	f := &Fetcher{WorkDir: t.TempDir()}
	dir, err := f.Localize(context.Background(), tmp)
	require.NoError(t, err)
	require.Equal(t, tmp, dir)
}

func TestLocalize_LocalFileURI(t *testing.T) {
	tmp := t.TempDir()
	filePath := filepath.Join(tmp, "single.sql")
	require.NoError(t, os.WriteFile(filePath, []byte("SELECT 1"), 0o644))

	f := &Fetcher{WorkDir: t.TempDir()}
	dir, err := f.Localize(context.Background(), "local://"+filePath)
	require.NoError(t, err)

	copied := filepath.Join(dir, "single.sql")
	_, err = os.Stat(copied)
	require.NoError(t, err)
}

func TestLocalize_ObjectStoreWithoutCredentials(t *testing.T) {
	f := &Fetcher{WorkDir: t.TempDir()}
	_, err := f.Localize(context.Background(), "acme/archive.zip")
	require.Error(t, err)
	var ingestErr *IngestError
	require.ErrorAs(t, err, &ingestErr)
}
