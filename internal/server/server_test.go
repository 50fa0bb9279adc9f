package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecast-explorer/internal/forecast"
	"forecast-explorer/internal/metrics"
	"forecast-explorer/internal/render"
	"forecast-explorer/internal/service"
	"forecast-explorer/internal/view"
)

type sliceLoader []forecast.Record

func (l sliceLoader) Load(context.Context) ([]forecast.Record, error) {
	return l, nil
}

func at(hour int) time.Time {
	return time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC)
}

func newTestServer(t *testing.T, loaded bool) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	loader := sliceLoader{
		{ModelID: "A", BaseTime: at(0), Step: 1, Prediction: 10.0, Actual: 9.5, HasActual: true},
		{ModelID: "A", BaseTime: at(0), Step: 2, Prediction: 10.5},
		{ModelID: "A", BaseTime: at(1), Step: 1, Prediction: 11.0},
		{ModelID: "B", BaseTime: at(5), Step: 1, Prediction: 3.0},
	}
	explorer := service.New(loader, nil, metrics.New(reg), service.Options{StepUnit: time.Hour}, zerolog.Nop())
	if loaded {
		require.NoError(t, explorer.Reload(context.Background(), time.Time{}))
	}
	return New(explorer, reg, render.Options{Width: 640, Height: 360}, gin.TestMode, zerolog.Nop())
}

func get(s *Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(newTestServer(t, false), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())
}

func TestModels(t *testing.T) {
	rec := get(newTestServer(t, true), "/api/models")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Models  []string `json:"models"`
		Records int      `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"A", "B"}, body.Models)
	assert.Equal(t, 4, body.Records)
}

func TestFigureWithClick(t *testing.T) {
	s := newTestServer(t, true)
	rec := get(s, "/api/figure?model=A&start=2024-01-01T00:00:00Z&end=2024-01-01T01:00:00Z&click=2024-01-01T00:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)

	var fig view.Figure
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fig))
	assert.Equal(t, "Showing multi-step forecast from 2024-01-01 00:00.", fig.Message)

	overlay, ok := fig.Trace(view.StyleSelection)
	require.True(t, ok)
	assert.Len(t, overlay.Points, 2)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
}

func TestFigureReusesSessionCookie(t *testing.T) {
	s := newTestServer(t, true)
	req := httptest.NewRequest(http.MethodGet, "/api/figure?model=B", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "existing"})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestFigureRejectsBadTime(t *testing.T) {
	rec := get(newTestServer(t, true), "/api/figure?model=A&start=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid start")
}

func TestFigureBeforeSnapshot(t *testing.T) {
	rec := get(newTestServer(t, false), "/api/figure?model=A")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChartPNG(t *testing.T) {
	rec := get(newTestServer(t, true), "/chart.png?model=A")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
}

func TestChartPNGEmptyRange(t *testing.T) {
	rec := get(newTestServer(t, true), "/chart.png?model=A&start=2024-01-02&end=2024-01-01")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIndexListsStep1Points(t *testing.T) {
	rec := get(newTestServer(t, true), "/?model=A&click=2024-01-01T01:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Model A: interactive predictions")
	assert.Contains(t, body, "2024-01-01 00:00")
	assert.Contains(t, body, "11.000")
	assert.Contains(t, body, "No additional steps for 2024-01-01 01:00.")
	assert.Contains(t, body, `class="selected"`)
	assert.Contains(t, body, "/chart.png?")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, true)
	get(s, "/api/figure?model=A")

	rec := get(s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fcexplorer_derivations_total")
}

func TestIndexRangeInputsKeepSeconds(t *testing.T) {
	reg := prometheus.NewRegistry()
	last := at(1).Add(30 * time.Second)
	loader := sliceLoader{
		{ModelID: "A", BaseTime: at(0), Step: 1, Prediction: 10.0},
		{ModelID: "A", BaseTime: last, Step: 1, Prediction: 11.0},
	}
	explorer := service.New(loader, nil, metrics.New(reg), service.Options{}, zerolog.Nop())
	require.NoError(t, explorer.Reload(context.Background(), time.Time{}))
	s := New(explorer, reg, render.Options{}, gin.TestMode, zerolog.Nop())

	rec := get(s, "/?model=A")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `step="1" name="end" value="2024-01-01T01:00:30"`)

	// Resubmitting the form as the browser would keeps the last base time in range.
	rec = get(s, "/?model=A&start=2024-01-01T00:00:00&end=2024-01-01T01:00:30")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "11.000")
}
