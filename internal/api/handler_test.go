package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akshayaggarwal99/runner/internal/observer"
	"github.com/akshayaggarwal99/runner/internal/pool"
)

func newTestHandler(t *testing.T, slotHandler http.HandlerFunc, staticCheck bool) (*echo.Echo, *observer.Bus) {
	t.Helper()
	srv := httptest.NewServer(slotHandler)
	t.Cleanup(srv.Close)

	slot := &pool.Slot{Name: "runner-worker-0", Address: srv.Listener.Addr().String()}
	bus := observer.NewBus()
	p := pool.New([]*pool.Slot{slot}, bus)

	e := echo.New()
	NewHandler(p, bus, staticCheck, 5*time.Second, 30*time.Second).RegisterRoutes(e)
	return e, bus
}

func TestRunCode_S1_Success(t *testing.T) {
	e, _ := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"stdout": "4\n", "stderr": "", "return_code": 0})
	}, false)

	req := httptest.NewRequest(http.MethodPost, "/run-code", strings.NewReader(`{"code":"print(2+2)"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "4\n", body["stdout"])
	assert.EqualValues(t, 0, body["return_code"])
}

func TestRunCode_S2_StaticCheckRejectsForbiddenImport(t *testing.T) {
	e, _ := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("sandbox must not be reached when the static check rejects the submission")
	}, true)

	req := httptest.NewRequest(http.MethodPost, "/run-code", strings.NewReader(`{"code":"import os\nprint(os.listdir('/'))"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	details, ok := body["details"].([]any)
	require.True(t, ok)
	assert.Contains(t, details, "import os")
}

func TestRunCode_SandboxTimeoutMapsTo408(t *testing.T) {
	e, _ := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestTimeout)
		json.NewEncoder(w).Encode(map[string]any{"error": "execution timed out"})
	}, false)

	req := httptest.NewRequest(http.MethodPost, "/run-code", strings.NewReader(`{"code":"while True: pass","timeout":2}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestTimeout, rec.Code)
}

func TestRunCode_RequestedTimeoutClampedToMax(t *testing.T) {
	var gotTimeout int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotTimeout = int(body["timeout"].(float64))
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"stdout": "", "stderr": "", "return_code": 0})
	}))
	defer srv.Close()

	slot := &pool.Slot{Name: "runner-worker-0", Address: srv.Listener.Addr().String()}
	bus := observer.NewBus()
	p := pool.New([]*pool.Slot{slot}, bus)
	e := echo.New()
	NewHandler(p, bus, false, 5*time.Second, 10*time.Second).RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodPost, "/run-code", strings.NewReader(`{"code":"pass","timeout":3600}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, gotTimeout, "requested timeout must be clamped to the configured maximum")
}

func TestRunCode_NoCapacityMapsTo503(t *testing.T) {
	e := echo.New()
	p := pool.New([]*pool.Slot{{Name: "runner-worker-0", Busy: true}}, nil)
	NewHandler(p, observer.NewBus(), false, 5*time.Second, 30*time.Second).RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodPost, "/run-code", strings.NewReader(`{"code":"print(1)"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth_ReturnsPoolSnapshot(t *testing.T) {
	e, _ := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestDashboardStats_ReflectsExecutions(t *testing.T) {
	e, _ := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"stdout": "hi\n", "stderr": "", "return_code": 0})
	}, false)

	req := httptest.NewRequest(http.MethodPost, "/run-code", strings.NewReader(`{"code":"print('hi')"}`))
	req.Header.Set("Content-Type", "application/json")
	e.ServeHTTP(httptest.NewRecorder(), req)

	statsReq := httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, statsReq)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats observer.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats.TotalExecutions)
	assert.EqualValues(t, 1, stats.SuccessCount)
}

func TestDashboardHistory_ReturnsRecentExecutions(t *testing.T) {
	e, _ := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"stdout": "", "stderr": "", "return_code": 0})
	}, false)

	req := httptest.NewRequest(http.MethodPost, "/run-code", strings.NewReader(`{"code":"pass"}`))
	req.Header.Set("Content-Type", "application/json")
	e.ServeHTTP(httptest.NewRecorder(), req)

	histReq := httptest.NewRequest(http.MethodGet, "/dashboard/history?limit=5", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, histReq)

	require.Equal(t, http.StatusOK, rec.Code)
	var history observer.History
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Executions, 1)
	assert.Equal(t, "pass", history.Executions[0].Code)
}
