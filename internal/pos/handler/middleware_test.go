package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/SecurePOS/internal/health"
	"github.com/jmerrifield20/SecurePOS/internal/pos/handler"
)

func TestRateLimiter_perOperator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler.RateLimiter(1, 2, handler.OperatorKey))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	hit := func(op string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Operator-ID", op)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := hit("op-1"); code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, code)
		}
	}
	if code := hit("op-1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", code)
	}
	if code := hit("op-2"); code != http.StatusNoContent {
		t.Fatalf("other operator should have its own bucket, got %d", code)
	}
}

func TestMetricsHandler_200(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler.PrometheusMiddleware())
	r.GET("/metrics", handler.MetricsHandler())

	handler.Recorder{}.SaleRecorded()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

type fixedStatus health.Status

func (f fixedStatus) Status() health.Status { return health.Status(f) }

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		h    *handler.HealthHandler
		want int
	}{
		{"liveness only", handler.NewHealthHandler(nil), http.StatusOK},
		{"healthy", handler.NewHealthHandler(fixedStatus{LedgerValid: true, Anchor: health.AnchorHealthy}), http.StatusOK},
		{"chain broken", handler.NewHealthHandler(fixedStatus{LedgerValid: false}), http.StatusServiceUnavailable},
		{"sale altered", handler.NewHealthHandler(fixedStatus{LedgerValid: true, SalesMismatched: []string{"a"}}), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			tc.h.Register(r)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}
