package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/SecurePOS/internal/pos/service"
	"go.uber.org/zap"
)

// SaleHandler handles HTTP requests for recording and verifying sales.
type SaleHandler struct {
	svc    *service.SaleService
	logger *zap.Logger
}

// NewSaleHandler creates a new SaleHandler.
func NewSaleHandler(svc *service.SaleService, logger *zap.Logger) *SaleHandler {
	return &SaleHandler{svc: svc, logger: logger}
}

// Register mounts the sale routes on the given router group.
func (h *SaleHandler) Register(rg *gin.RouterGroup) {
	sales := rg.Group("/sales")
	{
		sales.POST("", h.RecordSale)
		sales.GET("", h.ListSales)
		sales.GET("/:id", h.GetSale)
		sales.GET("/:id/verify", h.VerifySale)
		sales.POST("/:id/anchor", h.AnchorSale)
	}
}

// RecordSale handles POST /sales.
func (h *SaleHandler) RecordSale(c *gin.Context) {
	var req service.RecordSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.RecordSale(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err, "failed to record sale")
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ListSales handles GET /sales.
func (h *SaleHandler) ListSales(c *gin.Context) {
	txs, err := h.svc.ListSales(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err, "failed to list sales")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": txs, "count": len(txs)})
}

// GetSale handles GET /sales/:id.
func (h *SaleHandler) GetSale(c *gin.Context) {
	tx, err := h.svc.GetSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err, "failed to get sale")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sale": tx})
}

// VerifySale handles GET /sales/:id/verify. A failed check is still a 200;
// the verdict is in the body.
func (h *SaleHandler) VerifySale(c *gin.Context) {
	v, err := h.svc.VerifySale(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err, "failed to verify sale")
		return
	}
	c.JSON(http.StatusOK, v)
}

// AnchorSale handles POST /sales/:id/anchor.
func (h *SaleHandler) AnchorSale(c *gin.Context) {
	tx, err := h.svc.AnchorSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err, "failed to anchor sale")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sale": tx})
}
