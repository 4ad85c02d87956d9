package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/SecurePOS/internal/ledger"
	"github.com/jmerrifield20/SecurePOS/internal/pos/service"
	"go.uber.org/zap"
)

// LedgerHandler exposes read-only HTTP endpoints for the sales ledger.
type LedgerHandler struct {
	store  ledger.Store
	svc    *service.SaleService
	logger *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(store ledger.Store, svc *service.SaleService, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{store: store, svc: svc, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/verify", h.Verify)
		l.GET("/entries/:idx", h.GetEntry)
	}
}

// Overview handles GET /ledger and returns the chain length and head hash.
func (h *LedgerHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.store.Len(ctx)
	if err != nil {
		h.logger.Error("ledger Len", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}

	head, err := h.store.Head(ctx)
	if err != nil {
		h.logger.Error("ledger Head", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger head"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": count,
		"head":    head,
	})
}

// Verify handles GET /ledger/verify by walking the full chain.
func (h *LedgerHandler) Verify(c *gin.Context) {
	st, err := h.svc.VerifyLedger(c.Request.Context())
	if err != nil {
		h.logger.Error("ledger verify", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify ledger"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// GetEntry handles GET /ledger/entries/:idx.
func (h *LedgerHandler) GetEntry(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a non-negative integer"})
		return
	}

	entry, err := h.store.Get(c.Request.Context(), idx)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
			return
		}
		h.logger.Error("ledger Get", zap.Int("idx", idx), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}

	c.JSON(http.StatusOK, entry)
}
