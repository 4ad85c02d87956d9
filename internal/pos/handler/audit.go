package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/SecurePOS/internal/pos/service"
	"go.uber.org/zap"
)

// AuditHandler handles batch audits, inclusion proofs and the audit report.
type AuditHandler struct {
	svc    *service.SaleService
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(svc *service.SaleService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{svc: svc, logger: logger}
}

// Register mounts the audit routes on the given router group.
func (h *AuditHandler) Register(rg *gin.RouterGroup) {
	audits := rg.Group("/audits")
	{
		audits.POST("", h.RunAudit)
		audits.GET("", h.ListAudits)
		audits.GET("/:id", h.GetAudit)
		audits.POST("/:id/anchor", h.AnchorAudit)
		audits.GET("/:id/proof/:saleID", h.ProveSale)
	}
	rg.GET("/report", h.Report)
}

// RunAudit handles POST /audits.
func (h *AuditHandler) RunAudit(c *gin.Context) {
	res, err := h.svc.RunAudit(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err, "failed to run audit")
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ListAudits handles GET /audits.
func (h *AuditHandler) ListAudits(c *gin.Context) {
	audits, err := h.svc.ListAudits(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err, "failed to list audits")
		return
	}
	c.JSON(http.StatusOK, gin.H{"audits": audits, "count": len(audits)})
}

// GetAudit handles GET /audits/:id.
func (h *AuditHandler) GetAudit(c *gin.Context) {
	a, err := h.svc.GetAudit(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err, "failed to get audit")
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit": a})
}

// AnchorAudit handles POST /audits/:id/anchor.
func (h *AuditHandler) AnchorAudit(c *gin.Context) {
	a, err := h.svc.AnchorAudit(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err, "failed to anchor audit")
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit": a})
}

// ProveSale handles GET /audits/:id/proof/:saleID.
func (h *AuditHandler) ProveSale(c *gin.Context) {
	p, err := h.svc.ProveSale(c.Request.Context(), c.Param("saleID"), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err, "failed to build proof")
		return
	}
	c.JSON(http.StatusOK, p)
}

// Report handles GET /report.
func (h *AuditHandler) Report(c *gin.Context) {
	rep, err := h.svc.Report(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err, "failed to build report")
		return
	}
	c.JSON(http.StatusOK, rep)
}
