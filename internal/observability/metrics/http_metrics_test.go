package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGinMiddlewareRecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newHTTPMetrics(prometheus.NewRegistry(), Config{ServiceName: "spotlight"})

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/api/reservations/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for _, id := range []string{"1", "2"} {
		req := httptest.NewRequest(http.MethodGet, "/api/reservations/"+id, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/reservations/:id", "204"))
	if got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
	if inflight := testutil.ToFloat64(m.inFlight); inflight != 0 {
		t.Fatalf("expected no in-flight requests, got %v", inflight)
	}
}
