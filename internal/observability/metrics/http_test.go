package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGinMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, registry, Config{ServiceName: "givebox", Environment: "test"})

	router := gin.New()
	router.Use(GinMiddleware(m))
	router.GET("/api/organizations/:id", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/organizations/42", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/organizations/:id", "404"))
	if got != 3 {
		t.Fatalf("expected 3 requests, got %v", got)
	}
	if inFlight := testutil.ToFloat64(m.inFlight); inFlight != 0 {
		t.Fatalf("expected no in-flight requests, got %v", inFlight)
	}
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := newHTTPMetrics(registry, registry, Config{})
	second := newHTTPMetrics(registry, registry, Config{})
	if first.requests != second.requests {
		t.Fatal("expected second registration to reuse the existing collector")
	}
}
