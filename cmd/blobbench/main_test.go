package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "blobbench.toml")
	body := fmt.Sprintf(`log_level = "error"

[object_store]
driver = "local"
data_dir = %q

[relational]
driver = "sqlite3"
instance = %q
max_blob_bytes = 16

[dashboard]
metrics = false
`, filepath.Join(dir, "objects"), filepath.Join(dir, "bench.sqlite"))

	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestCLIRoundTrip(t *testing.T) {
	cfgPath := writeConfig(t)

	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	out, err := run(t, cfgPath, "upload", src)
	require.NoError(t, err)
	require.Contains(t, out, "upload notes.txt")
	require.Contains(t, out, "winner:")

	out, err = run(t, cfgPath, "list")
	require.NoError(t, err)
	require.Equal(t, "notes.txt\n", out)

	out, err = run(t, cfgPath, "search", "note")
	require.NoError(t, err)
	require.Contains(t, out, "notes.txt")
	require.Contains(t, out, "5 B")

	outDir := filepath.Join(t.TempDir(), "out")
	out, err = run(t, cfgPath, "download", "notes.txt", "--out", outDir)
	require.NoError(t, err)
	require.Contains(t, out, "download notes.txt")

	for _, backend := range []string{"object", "relational"} {
		data, err := os.ReadFile(filepath.Join(outDir, backend+"-notes.txt"))
		require.NoError(t, err)
		require.Equal(t, "hello", string(data))
	}

	out, err = run(t, cfgPath, "check")
	require.NoError(t, err)
	require.Contains(t, out, "relational store ok: sqlite3, 1 name(s)")
	require.Contains(t, out, "object store ok: local, 1 object(s)")

	out, err = run(t, cfgPath, "delete", "notes.txt")
	require.NoError(t, err)
	require.Contains(t, out, "deleted 1 relational row(s)")
	require.Contains(t, out, "object removed")

	out, err = run(t, cfgPath, "list")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestCLIUploadOverRelationalLimit(t *testing.T) {
	cfgPath := writeConfig(t)

	src := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(src, bytes.Repeat([]byte("x"), 64), 0o644))

	out, err := run(t, cfgPath, "upload", src, "--name", "renamed.bin")
	require.NoError(t, err)
	require.Contains(t, out, "upload renamed.bin")
	require.Contains(t, out, "failed")
	require.Contains(t, out, "winner: object store (n/a)")
}

func TestCLIDownloadMissing(t *testing.T) {
	cfgPath := writeConfig(t)

	_, err := run(t, cfgPath, "download", "ghost")
	require.Error(t, err)
}

func TestCLIArgs(t *testing.T) {
	cfgPath := writeConfig(t)

	_, err := run(t, cfgPath, "upload")
	require.Error(t, err)

	_, err = run(t, cfgPath, "search", "a", "b")
	require.Error(t, err)
}
