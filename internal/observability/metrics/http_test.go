package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGinMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetricsWith(reg, Config{ServiceName: "test"})
	require.NoError(t, err)

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/ratings/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/ratings/1", "/ratings/2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNoContent, w.Code)
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/ratings/:id", "204"))
	assert.Equal(t, float64(2), got)
}

func TestNewHTTPMetricsWithReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewHTTPMetricsWith(reg, Config{})
	require.NoError(t, err)
	second, err := NewHTTPMetricsWith(reg, Config{})
	require.NoError(t, err)
	assert.Same(t, first.requests, second.requests)
}
