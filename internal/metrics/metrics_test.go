package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"blobbench/internal/bench"
	"blobbench/internal/metrics"
)

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserveRun(t *testing.T) {
	t.Parallel()

	m := metrics.New()

	m.ObserveRun(bench.Result{
		Operation:  bench.Upload,
		Size:       2048,
		Object:     bench.Measurement{Backend: bench.ObjectStore, Elapsed: 2 * time.Millisecond},
		Relational: bench.Measurement{Backend: bench.RelationalStore, Elapsed: 8 * time.Millisecond},
	})
	m.ObserveRun(bench.Result{
		Operation:  bench.Upload,
		Object:     bench.Measurement{Backend: bench.ObjectStore, Elapsed: time.Millisecond},
		Relational: bench.Measurement{Backend: bench.RelationalStore, Err: errors.New("too big")},
	})

	body := scrape(t, m)
	require.Contains(t, body, `blobbench_runs_total{operation="upload",winner="object"} 2`)
	require.Contains(t, body, `blobbench_relational_errors_total{operation="upload"} 1`)
	require.Contains(t, body, `blobbench_operation_duration_seconds_count{backend="object",operation="upload"} 2`)
	require.Contains(t, body, `blobbench_operation_duration_seconds_count{backend="relational",operation="upload"} 1`)
	require.Contains(t, body, `blobbench_payload_bytes_count{operation="upload"} 2`)
	require.Contains(t, body, "go_goroutines")
}

func TestRegistriesAreIndependent(t *testing.T) {
	t.Parallel()

	a := metrics.New()
	b := metrics.New()

	a.ObserveRun(bench.Result{Operation: bench.Download})
	require.NotContains(t, scrape(t, b), `blobbench_runs_total{operation="download"`)
}
