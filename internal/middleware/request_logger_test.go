package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/datashare/internal/metrics"
)

func TestRequestLoggerKeepsIncomingTraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(DefaultRequestLoggerConfig("development")))
	r.POST("/echo", func(c *gin.Context) {
		var in map[string]string
		require.NoError(t, c.ShouldBindJSON(&in))
		c.JSON(http.StatusOK, gin.H{"trace": c.GetString("trace_id"), "name": in["name"]})
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TraceHeader, "trace-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"trace":"trace-123","name":"x"}`, w.Body.String())
	assert.Equal(t, "trace-123", w.Header().Get(TraceHeader))
}

func TestExtractHeadersDropsCredentials(t *testing.T) {
	headers := extractHeaders(http.Header{
		"Authorization": {"Bearer secret"},
		"Cookie":        {"sid=1"},
		"Accept":        {"application/json"},
	})
	assert.Equal(t, map[string]string{"Accept": "application/json"}, headers)
}

func TestRecoveryRendersInternalError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(nil), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/items/:id", "200")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
	}
	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}
