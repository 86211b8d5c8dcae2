package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pytake/taskqueue/internal/metrics"
	"github.com/pytake/taskqueue/internal/queue"
	"github.com/pytake/taskqueue/internal/store"
)

func newTestHandler() *Handler {
	db := store.NewFake()
	engine := queue.NewEngine(db, time.Hour)
	sink := metrics.NewSink(db)
	return New(engine, sink, metrics.NewProcessRegistry(), nil, "test")
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.Health)
	r.POST("/jobs", h.CreateJob)
	r.GET("/jobs/:id", h.GetJob)
	r.POST("/_tick", h.Tick)
	r.GET("/queues", h.QueuesSummary)
	r.GET("/recent", h.Recent)
	r.GET("/metrics", h.Metrics)
	r.GET("/demo", h.Demo)
	r.GET("/demo/complex", h.DemoComplex)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthReturnsOK(t *testing.T) {
	r := newTestRouter(newTestHandler())
	w := doJSON(t, r, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCreateJobAppliesDefaultsAndEnqueues(t *testing.T) {
	r := newTestRouter(newTestHandler())

	w := doJSON(t, r, "POST", "/jobs", map[string]interface{}{"type": "echo"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp EnqueueResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, "default", resp.Priority)
}

func TestCreateJobRejectsUnknownType(t *testing.T) {
	r := newTestRouter(newTestHandler())

	w := doJSON(t, r, "POST", "/jobs", map[string]interface{}{"type": "not-a-real-type"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCreateJobRejectsBadBackoff(t *testing.T) {
	r := newTestRouter(newTestHandler())

	w := doJSON(t, r, "POST", "/jobs", map[string]interface{}{"type": "echo", "backoff_sec": 0.5})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetJobRoundTrip(t *testing.T) {
	r := newTestRouter(newTestHandler())

	created := doJSON(t, r, "POST", "/jobs", map[string]interface{}{"type": "sleep"})
	require.Equal(t, http.StatusOK, created.Code)
	var createResp EnqueueResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &createResp))

	w := doJSON(t, r, "GET", "/jobs/"+createResp.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp JobStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, createResp.ID, resp.ID)
	assert.Equal(t, "queued", resp.Status)
}

func TestGetJobMissingReturns404(t *testing.T) {
	r := newTestRouter(newTestHandler())
	w := doJSON(t, r, "GET", "/jobs/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTickReportsMovedCount(t *testing.T) {
	r := newTestRouter(newTestHandler())
	w := doJSON(t, r, "POST", "/_tick", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"moved":0}`, w.Body.String())
}

func TestQueuesSummaryReflectsEnqueuedJob(t *testing.T) {
	r := newTestRouter(newTestHandler())
	doJSON(t, r, "POST", "/jobs", map[string]interface{}{"type": "echo", "priority": "high"})

	w := doJSON(t, r, "GET", "/queues", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	sizes := body["sizes"].(map[string]interface{})
	assert.EqualValues(t, 1, sizes["high"])
}

func TestRecentListsEnqueuedJob(t *testing.T) {
	r := newTestRouter(newTestHandler())
	doJSON(t, r, "POST", "/jobs", map[string]interface{}{"type": "echo"})

	w := doJSON(t, r, "GET", "/recent", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string][]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body["recent"], 1)
}

func TestMetricsRendersGaugesAfterEnqueue(t *testing.T) {
	r := newTestRouter(newTestHandler())
	doJSON(t, r, "POST", "/jobs", map[string]interface{}{"type": "echo"})

	w := doJSON(t, r, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "job_queue_enqueued_total")
	assert.Contains(t, w.Body.String(), "queue_size")
}

func TestDemoEnqueuesSmallBurst(t *testing.T) {
	r := newTestRouter(newTestHandler())
	w := doJSON(t, r, "GET", "/demo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"enqueued":12}`, w.Body.String())
}

func TestDemoComplexEnqueuesFixedMix(t *testing.T) {
	r := newTestRouter(newTestHandler())
	w := doJSON(t, r, "GET", "/demo/complex", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"enqueued"}`, w.Body.String())
}
