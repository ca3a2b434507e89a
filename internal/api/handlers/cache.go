package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nexconsult/adres-api/internal/models"
	"github.com/nexconsult/adres-api/internal/services"
)

// CacheHandler handles cache management requests
type CacheHandler struct {
	cacheService services.CacheServiceInterface
	logger       *logrus.Logger
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(cacheService services.CacheServiceInterface, logger *logrus.Logger) *CacheHandler {
	return &CacheHandler{
		cacheService: cacheService,
		logger:       logger,
	}
}

// GetStats handles cache statistics request
// @Summary Get cache statistics
// @Description Get detailed cache statistics and metrics
// @Tags Cache
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/cache/stats [get]
func (h *CacheHandler) GetStats(c *gin.Context) {
	requestID := c.GetString("request_id")

	h.logger.WithField("request_id", requestID).Info("Getting cache statistics")

	stats, err := h.cacheService.GetStats(c.Request.Context())
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to get cache statistics")

		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Internal server error",
			Message:   "Failed to retrieve cache statistics",
			Code:      "CACHE_STATS_ERROR",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	// Add additional metadata
	response := map[string]interface{}{
		"stats":     stats,
		"timestamp": time.Now(),
		"health":    h.cacheService.Health(),
	}

	c.JSON(http.StatusOK, response)
}

// Clear handles cache clear request
// @Summary Clear all cache
// @Description Clear all cached lookup outcomes
// @Tags Cache
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/cache/clear [delete]
func (h *CacheHandler) Clear(c *gin.Context) {
	requestID := c.GetString("request_id")

	h.logger.WithField("request_id", requestID).Info("Clearing all cache")

	err := h.cacheService.Clear(c.Request.Context())
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to clear cache")

		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Internal server error",
			Message:   "Failed to clear cache",
			Code:      "CACHE_CLEAR_ERROR",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	h.logger.WithField("request_id", requestID).Info("Cache cleared successfully")

	response := map[string]interface{}{
		"message":   "Cache cleared successfully",
		"timestamp": time.Now(),
		"success":   true,
	}

	c.JSON(http.StatusOK, response)
}

// Delete handles specific cache entry deletion
// @Summary Delete one cached outcome
// @Description Delete the cached outcome of one document so the next lookup goes to the portal
// @Tags Cache
// @Param tipo path string true "Document type code or name" example(CC)
// @Param numero path string true "Document number"
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/cache/{tipo}/{numero} [delete]
func (h *CacheHandler) Delete(c *gin.Context) {
	requestID := c.GetString("request_id")

	req := models.ConsultaRequest{TipoDocumento: c.Param("tipo"), NumeroDocumento: c.Param("numero")}
	if err := req.Normalize(); err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"tipo":       c.Param("tipo"),
			"error":      err.Error(),
		}).Warn("Invalid document for cache deletion")

		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "Invalid document",
			Message:   err.Error(),
			Code:      "INVALID_DOCUMENT",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	cacheKey := services.CacheKey(req.TipoDocumento, req.NumeroDocumento)
	fields := logrus.Fields{
		"request_id": requestID,
		"key":        cacheKey,
	}

	exists, err := h.cacheService.Exists(c.Request.Context(), cacheKey)
	if err != nil {
		h.logger.WithFields(fields).WithError(err).Error("Failed to check cache key existence")

		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Internal server error",
			Message:   "Failed to check cache",
			Code:      "CACHE_CHECK_ERROR",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	if !exists {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:     "Not found",
			Message:   "Document not found in cache",
			Code:      "DOCUMENT_NOT_IN_CACHE",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	if err := h.cacheService.Delete(c.Request.Context(), cacheKey); err != nil {
		h.logger.WithFields(fields).WithError(err).Error("Failed to delete document from cache")

		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Internal server error",
			Message:   "Failed to delete from cache",
			Code:      "CACHE_DELETE_ERROR",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	h.logger.WithFields(fields).Info("Document deleted from cache")

	c.JSON(http.StatusOK, map[string]interface{}{
		"message":          "Document deleted from cache successfully",
		"tipo_documento":   req.TipoDocumento,
		"numero_documento": req.NumeroDocumento,
		"timestamp":        time.Now(),
		"success":          true,
	})
}
