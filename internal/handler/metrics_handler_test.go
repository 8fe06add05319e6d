package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-seating-api/internal/service"
	"github.com/noah-isme/exam-seating-api/pkg/jobs"
)

type queueStatsStub struct {
	stats jobs.Stats
}

func (s queueStatsStub) Stats() jobs.Stats { return s.stats }

func TestMetricsHandlerPrometheus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.ObservePlanGeneration(service.GenerationOutcomeSuccess, 8, time.Millisecond)
	h := NewMetricsHandler(metrics, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	h.Prometheus(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "seating_plan_generations_total")
}

func TestMetricsHandlerPrometheusUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMetricsHandler(nil, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	h.Prometheus(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsHandlerSummary(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.ObservePlanGeneration(service.GenerationOutcomeSuccess, 8, time.Millisecond)
	metrics.RecordSeatSwap(service.SwapResultSwapped)
	h := NewMetricsHandler(metrics, queueStatsStub{stats: jobs.Stats{Processed: 3, Dropped: 1}})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/metrics/summary", nil)
	h.Summary(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			Metrics    service.MetricsSnapshot `json:"metrics"`
			PlanEvents jobs.Stats              `json:"plan_events"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, uint64(1), body.Data.Metrics.PlansGenerated)
	assert.Equal(t, uint64(8), body.Data.Metrics.StudentsSeated)
	assert.Equal(t, uint64(1), body.Data.Metrics.SeatSwaps)
	assert.Equal(t, uint64(3), body.Data.PlanEvents.Processed)
	assert.Equal(t, uint64(1), body.Data.PlanEvents.Dropped)
}

func TestMetricsHandlerHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	NewMetricsHandler(nil, nil).Health(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
