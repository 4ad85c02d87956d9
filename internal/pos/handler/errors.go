package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/SecurePOS/internal/anchor"
	"github.com/jmerrifield20/SecurePOS/internal/ledger"
	"github.com/jmerrifield20/SecurePOS/internal/pos/service"
	"github.com/jmerrifield20/SecurePOS/internal/sale"
	"go.uber.org/zap"
)

// writeError maps service and store errors onto HTTP responses. Client
// errors echo the error text; server errors use fallback.
func writeError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, sale.ErrInvalidRecord):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, service.ErrNotCovered):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyBatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, anchor.ErrUnavailable), errors.Is(err, service.ErrAnchorDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logger.Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
