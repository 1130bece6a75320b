package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kv-migrator/internal/health"
	"kv-migrator/internal/logs"
	"kv-migrator/internal/metrics"
	"kv-migrator/internal/migrate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProgress migrate.Summary

func (p staticProgress) Progress() migrate.Summary { return migrate.Summary(p) }

type downEndpoints []string

func (d downEndpoints) Unhealthy() []string { return d }

func setUpTestServer(progress ProgressSource) (*httptest.Server, *metrics.Registry) {
	return setUpTestServerWithEndpoints(progress, nil)
}

func setUpTestServerWithEndpoints(progress ProgressSource, endpoints health.EndpointStates) (*httptest.Server, *metrics.Registry) {
	reg := metrics.NewRegistry()
	logger := logs.NewLogger(50, logs.DEBUG)

	h := NewHandler(progress, reg, logger, endpoints)

	mux := http.NewServeMux()
	handler := RegisterRoutes(mux, h)

	return httptest.NewServer(handler), reg
}

/* ---------------- GET /progress ---------------- */

func TestGetProgress(t *testing.T) {
	server, _ := setUpTestServer(staticProgress{
		Total:    4,
		Copied:   2,
		Skipped:  1,
		Failed:   1,
		Failures: []migrate.Failure{{Key: "d", Error: "write value: OOM"}},
		Elapsed:  2 * time.Second,
	})
	defer server.Close()

	resp, err := http.Get(server.URL + "/progress")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(4), body["total"])
	assert.Equal(t, float64(2), body["copied"])
	assert.Equal(t, "2s", body["elapsed"])
	assert.Len(t, body["failures"], 1)
}

/* ---------------- GET /metrics ---------------- */

func TestGetMetrics(t *testing.T) {
	server, reg := setUpTestServer(staticProgress{})
	defer server.Close()

	reg.Add(metrics.KeysCopiedTotal, 7)

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "kvmigrate_keys_copied_total 7")
}

/* ---------------- GET /health ---------------- */

func TestGetHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		server, _ := setUpTestServer(staticProgress{})
		defer server.Close()

		resp, err := http.Get(server.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var report map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))

		assert.Contains(t, report, "overall_status")
		assert.Contains(t, report, "summary")
		assert.Contains(t, report, "signals")
		assert.Contains(t, report, "recommendations")
	})

	t.Run("critical", func(t *testing.T) {
		server, reg := setUpTestServer(staticProgress{})
		defer server.Close()

		reg.Inc(metrics.EnumerationErrorsTotal)

		resp, err := http.Get(server.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("endpoint down", func(t *testing.T) {
		server, _ := setUpTestServerWithEndpoints(staticProgress{}, downEndpoints{"target"})
		defer server.Close()

		resp, err := http.Get(server.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var report health.Report
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
		assert.Contains(t, report.Signals, "Unreachable endpoints: target")
	})
}

/* ---------------- Route validation ---------------- */

func TestRouteValidation(t *testing.T) {
	server, _ := setUpTestServer(staticProgress{})
	defer server.Close()

	t.Run("MethodNotAllowed", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/progress", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("UnknownPath", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/kv/key1")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

/* ---------------- Server lifecycle ---------------- */

func TestServer_ListenServeShutdown(t *testing.T) {
	logger := logs.NewLogger(10, logs.DEBUG)
	h := NewHandler(staticProgress{Copied: 1}, metrics.NewRegistry(), logger, nil)

	srv, err := Listen("127.0.0.1:0", h, logger)
	require.NoError(t, err)
	go srv.Serve()

	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + srv.Addr() + "/progress")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}
