package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"blobbench/internal/storage"
)

func TestWriteFileAtomicCreatesParents(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "a", "b", "c.bin")
	require.NoError(t, storage.WriteFileAtomic(dest, []byte("payload")))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file should not be left behind")
}

func TestMoveFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.WriteFile(src, []byte("moved"), 0o644))

	require.NoError(t, storage.MoveFile(src, dest))

	_, err := os.Stat(src)
	require.True(t, os.IsNotExist(err), "source should be gone")

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, []byte("moved"), got)
}

func TestCopyFileMissingSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.Error(t, storage.CopyFile(filepath.Join(dir, "missing"), filepath.Join(dir, "dest")))
}
