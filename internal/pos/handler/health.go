package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/SecurePOS/internal/health"
)

// statusSource is satisfied by *health.Checker.
type statusSource interface {
	Status() health.Status
}

// HealthHandler serves /healthz from the latest integrity sweep.
type HealthHandler struct {
	checker statusSource // nil = liveness only
}

// NewHealthHandler creates a new HealthHandler. checker may be nil.
func NewHealthHandler(checker statusSource) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Register mounts /healthz on the given router.
func (h *HealthHandler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Health)
}

// Health handles GET /healthz. It returns 503 when the last sweep found
// evidence of tampering.
func (h *HealthHandler) Health(c *gin.Context) {
	if h.checker == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	st := h.checker.Status()
	if !st.Healthy() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "tampered", "integrity": st})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "integrity": st})
}
