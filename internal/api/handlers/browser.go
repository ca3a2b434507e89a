package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nexconsult/adres-api/internal/models"
	"github.com/nexconsult/adres-api/internal/services"
)

// BrowserHandler handles browser pool management requests
type BrowserHandler struct {
	browserService services.BrowserServiceInterface
	logger         *logrus.Logger
}

// NewBrowserHandler creates a new browser handler
func NewBrowserHandler(browserService services.BrowserServiceInterface, logger *logrus.Logger) *BrowserHandler {
	return &BrowserHandler{
		browserService: browserService,
		logger:         logger,
	}
}

// GetStats handles browser pool statistics request
// @Summary Get browser pool statistics
// @Description Get detailed browser pool statistics and metrics
// @Tags Browser
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/browser/stats [get]
func (h *BrowserHandler) GetStats(c *gin.Context) {
	stats := h.browserService.GetStats()

	response := map[string]interface{}{
		"stats":     stats,
		"timestamp": time.Now(),
		"health":    h.browserService.Health(),
	}

	c.JSON(http.StatusOK, response)
}

// Restart handles browser pool restart request
// @Summary Restart browser pool
// @Description Close every idle browser and launch the minimum pool again
// @Tags Browser
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/browser/restart [post]
func (h *BrowserHandler) Restart(c *gin.Context) {
	requestID := c.GetString("request_id")

	h.logger.WithField("request_id", requestID).Info("Restarting browser pool")

	err := h.browserService.Restart()
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to restart browser pool")

		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrPoolClosed) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, models.ErrorResponse{
			Error:     "Internal server error",
			Message:   "Failed to restart browser pool: " + err.Error(),
			Code:      "BROWSER_RESTART_ERROR",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	h.logger.WithField("request_id", requestID).Info("Browser pool restarted successfully")

	response := map[string]interface{}{
		"message":   "Browser pool restarted successfully",
		"timestamp": time.Now(),
		"success":   true,
		"stats":     h.browserService.GetStats(),
	}

	c.JSON(http.StatusOK, response)
}

// GetHealth handles browser pool health check request
// @Summary Get browser pool health
// @Description Get the health status of the browser pool
// @Tags Browser
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} models.ErrorResponse
// @Router /api/v1/browser/health [get]
func (h *BrowserHandler) GetHealth(c *gin.Context) {
	health := h.browserService.Health()
	stats := h.browserService.GetStats()

	response := map[string]interface{}{
		"health":    health,
		"stats":     stats,
		"timestamp": time.Now(),
	}

	httpStatus := http.StatusOK
	if health["status"] == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, response)
}
