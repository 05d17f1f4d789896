package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/raysim/internal/metrics"
	"github.com/aretw0/raysim/pkg/adapters/memory"
	"github.com/aretw0/raysim/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (http.Handler, *memory.Ledger, *metrics.Server) {
	t.Helper()
	ledger := memory.NewLedger()
	reg := prometheus.NewRegistry()
	m := metrics.NewServer(reg)
	return NewHandler(ledger, reg, nil, "v-test"), ledger, m
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandler(t)
	w := get(t, h, "/healthz")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "v-test", body["version"])
}

func TestMetrics(t *testing.T) {
	h, _, m := newTestHandler(t)
	m.Requests.WithLabelValues(string(domain.OutcomeSuccess)).Inc()

	w := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `raysim_requests_total{outcome="success"} 1`)
}

func TestRuns(t *testing.T) {
	h, ledger, _ := newTestHandler(t)

	w := get(t, h, "/runs")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, ledger.Put(context.Background(), domain.RunRecord{
			ID:      id,
			Exports: []string{"Dipole"},
			Outcome: domain.OutcomeSuccess,
			Started: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	w = get(t, h, "/runs?limit=2")
	require.Equal(t, http.StatusOK, w.Code)
	var runs []domain.RunRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/runs?limit=x").Code)

	w = get(t, h, "/runs/b")
	require.Equal(t, http.StatusOK, w.Code)
	var run domain.RunRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&run))
	assert.Equal(t, []string{"Dipole"}, run.Exports)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/runs/zzz").Code)
}
