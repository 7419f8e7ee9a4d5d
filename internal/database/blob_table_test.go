package database_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"blobbench/internal/config"
	"blobbench/internal/database"
)

func openSQLite(t *testing.T, maxBlobBytes int64) *database.BlobTable {
	t.Helper()

	table, err := database.Open(t.Context(), config.RelationalConfig{
		Driver:       config.RelationalDriverSQLite,
		Instance:     filepath.Join(t.TempDir(), "db", "bench.sqlite"),
		Table:        config.DefaultTable,
		MaxBlobBytes: maxBlobBytes,
		MaxOpenConns: 4,
	}, config.Credentials{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = table.Close() })

	return table
}

func TestInsertAndFetch(t *testing.T) {
	t.Parallel()

	table := openSQLite(t, 0)
	require.Equal(t, config.RelationalDriverSQLite, table.Driver())

	id, err := table.Insert(t.Context(), "a.txt", []byte("hello"))
	require.NoError(t, err)
	require.Positive(t, id)

	data, err := table.Fetch(t.Context(), "a.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
}

func TestFetchReturnsNewestDuplicate(t *testing.T) {
	t.Parallel()

	table := openSQLite(t, 0)

	first, err := table.Insert(t.Context(), "f.txt", []byte("first"))
	require.NoError(t, err)
	second, err := table.Insert(t.Context(), "f.txt", []byte("second"))
	require.NoError(t, err)
	require.Greater(t, second, first, "duplicate names append new rows")

	data, err := table.Fetch(t.Context(), "f.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("second"), data)
}

func TestFetchMissing(t *testing.T) {
	t.Parallel()

	table := openSQLite(t, 0)

	_, err := table.Fetch(t.Context(), "nope")
	require.ErrorIs(t, err, database.ErrNotFound)
}

func TestInsertEmptyPayload(t *testing.T) {
	t.Parallel()

	table := openSQLite(t, 0)

	_, err := table.Insert(t.Context(), "empty", nil)
	require.NoError(t, err)

	data, err := table.Fetch(t.Context(), "empty")
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestInsertRejectsOversizedPayload(t *testing.T) {
	t.Parallel()

	table := openSQLite(t, 4)

	_, err := table.Insert(t.Context(), "big", []byte("12345"))
	require.ErrorIs(t, err, database.ErrPayloadTooLarge)

	_, err = table.Insert(t.Context(), "fits", []byte("1234"))
	require.NoError(t, err)

	records, err := table.Search(t.Context(), "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "fits", records[0].Name)
}

func TestDeleteByNameRemovesAllDuplicates(t *testing.T) {
	t.Parallel()

	table := openSQLite(t, 0)

	for _, name := range []string{"f.txt", "f.txt", "g.txt"} {
		_, err := table.Insert(t.Context(), name, []byte(name))
		require.NoError(t, err)
	}

	removed, err := table.DeleteByName(t.Context(), "f.txt")
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	_, err = table.Fetch(t.Context(), "f.txt")
	require.ErrorIs(t, err, database.ErrNotFound)

	removed, err = table.DeleteByName(t.Context(), "f.txt")
	require.NoError(t, err)
	require.Zero(t, removed)

	names, err := table.Names(t.Context())
	require.NoError(t, err)
	require.Equal(t, []string{"g.txt"}, names)
}

func TestNamesAreDistinctAndSorted(t *testing.T) {
	t.Parallel()

	table := openSQLite(t, 0)

	names, err := table.Names(t.Context())
	require.NoError(t, err)
	require.Empty(t, names)

	for _, name := range []string{"zeta", "alpha", "zeta", "mid"} {
		_, err := table.Insert(t.Context(), name, []byte("x"))
		require.NoError(t, err)
	}

	names, err = table.Names(t.Context())
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestSearch(t *testing.T) {
	t.Parallel()

	table := openSQLite(t, 0)

	for _, row := range []struct {
		name string
		data string
	}{
		{"report-2024.pdf", "pdf!"},
		{"photo.png", "png"},
		{"report-2025.pdf", "pdf"},
	} {
		_, err := table.Insert(t.Context(), row.name, []byte(row.data))
		require.NoError(t, err)
	}

	records, err := table.Search(t.Context(), "report")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "report-2024.pdf", records[0].Name)
	require.Equal(t, int64(4), records[0].Size)
	require.Equal(t, "report-2025.pdf", records[1].Name)
	require.Less(t, records[0].ID, records[1].ID)

	records, err = table.Search(t.Context(), "")
	require.NoError(t, err)
	require.Len(t, records, 3)

	records, err = table.Search(t.Context(), "missing")
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestSchemaPersistsAcrossOpens(t *testing.T) {
	t.Parallel()

	cfg := config.RelationalConfig{
		Driver:   config.RelationalDriverSQLite,
		Instance: filepath.Join(t.TempDir(), "bench.sqlite"),
		Table:    "custom_blobs",
	}

	first, err := database.Open(t.Context(), cfg, config.Credentials{})
	require.NoError(t, err)
	_, err = first.Insert(t.Context(), "kept", []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := database.Open(t.Context(), cfg, config.Credentials{})
	require.NoError(t, err)
	defer second.Close()

	data, err := second.Fetch(t.Context(), "kept")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)
}

func TestInMemoryInstance(t *testing.T) {
	t.Parallel()

	table, err := database.Open(t.Context(), config.RelationalConfig{
		Driver:       config.RelationalDriverSQLite,
		Instance:     ":memory:",
		MaxOpenConns: 8,
	}, config.Credentials{})
	require.NoError(t, err)
	defer table.Close()

	_, err = table.Insert(t.Context(), "a", []byte("b"))
	require.NoError(t, err)

	data, err := table.Fetch(t.Context(), "a")
	require.NoError(t, err)
	require.Equal(t, []byte("b"), data)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := database.Open(t.Context(), config.RelationalConfig{Driver: "oracle", Instance: "x"}, config.Credentials{})
	require.ErrorContains(t, err, "unsupported relational driver")
}

// TestExternalDatabases exercises the pgx and mysql dialects against live
// servers named by BLOBBENCH_TEST_PG_DSN and BLOBBENCH_TEST_MYSQL_DSN.
func TestExternalDatabases(t *testing.T) {
	for _, tc := range []struct {
		driver string
		env    string
	}{
		{config.RelationalDriverPostgres, "BLOBBENCH_TEST_PG_DSN"},
		{config.RelationalDriverMySQL, "BLOBBENCH_TEST_MYSQL_DSN"},
	} {
		t.Run(tc.driver, func(t *testing.T) {
			dsn := os.Getenv(tc.env)
			if dsn == "" {
				t.Skipf("%s not set", tc.env)
			}

			table, err := database.Open(t.Context(), config.RelationalConfig{
				Driver:       tc.driver,
				Instance:     dsn,
				Table:        "blobbench_test",
				MaxOpenConns: 2,
			}, config.Credentials{})
			require.NoError(t, err)
			defer table.Close()

			_, err = table.DeleteByName(t.Context(), "ext.txt")
			require.NoError(t, err)

			_, err = table.Insert(t.Context(), "ext.txt", []byte("one"))
			require.NoError(t, err)
			_, err = table.Insert(t.Context(), "ext.txt", []byte("two"))
			require.NoError(t, err)

			data, err := table.Fetch(t.Context(), "ext.txt")
			require.NoError(t, err)
			require.Equal(t, []byte("two"), data)

			records, err := table.Search(t.Context(), "ext.")
			require.NoError(t, err)
			require.Len(t, records, 2)

			removed, err := table.DeleteByName(t.Context(), "ext.txt")
			require.NoError(t, err)
			require.Equal(t, int64(2), removed)
		})
	}
}
