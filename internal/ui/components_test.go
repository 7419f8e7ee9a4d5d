package ui_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"blobbench/internal/ui"
)

func TestResultPage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := ui.ResultPage(ui.Result{
		RunID:      "run-1",
		Operation:  "upload",
		Name:       "<a.txt>",
		Size:       2048,
		StartedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Object:     ui.Timing{Label: "Object store", Elapsed: 10 * time.Millisecond},
		Relational: ui.Timing{Label: "Relational store", Elapsed: 35 * time.Millisecond},
		Winner:     "Object store",
		Ratio:      3.5,
		RatioOK:    true,
	}).Render(t.Context(), &buf)
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "Upload benchmark: &lt;a.txt&gt;")
	require.NotContains(t, out, "<a.txt>")
	require.Contains(t, out, "0.0100s")
	require.Contains(t, out, "0.0350s")
	require.Contains(t, out, "3.5x")
	require.Contains(t, out, "Object store is faster")
	require.Contains(t, out, "2.0 KiB")
	require.Contains(t, out, "2024-05-01T12:00:00Z")
	require.Contains(t, out, "INSERT BLOB")
	require.NotContains(t, out, "/files/")
}

func TestResultPageRelationalFailure(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := ui.ResultPage(ui.Result{
		Operation:  "download",
		Name:       "my file.bin",
		Object:     ui.Timing{Label: "Object store", Elapsed: time.Millisecond},
		Relational: ui.Timing{Label: "Relational store", Failed: true, Cause: "no row named \"my file.bin\""},
		Winner:     "Object store",
		SaveLinks:  true,
	}).Render(t.Context(), &buf)
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "n/a")
	require.Contains(t, out, "failed")
	require.Contains(t, out, "/files/object/my%20file.bin")
	require.NotContains(t, out, "/files/relational/")
	require.Contains(t, out, "SELECT BLOB")
}

func TestHomePage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := ui.HomePage(ui.Home{
		Names:             []string{"a.txt", "b.pdf"},
		Records:           []ui.Record{{ID: 7, Name: "a.txt", Size: 5}},
		AllowedExtensions: []string{".txt", ".pdf"},
		MaxUploadBytes:    1 << 20,
		Notice:            "Deleted 2 rows",
		Driver:            "sqlite3",
	}).Render(t.Context(), &buf)
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "Deleted 2 rows")
	require.Contains(t, out, `accept=".txt,.pdf"`)
	require.Contains(t, out, "1.0 MiB")
	require.Contains(t, out, `<option value="b.pdf">b.pdf</option>`)
	require.Contains(t, out, "<td>7</td><td>a.txt</td><td>5 B</td>")
	require.Contains(t, out, "sqlite3")
}

func TestRecordsTableEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, ui.RecordsTable(nil).Render(t.Context(), &buf))
	require.Contains(t, buf.String(), "No matching records")
}
