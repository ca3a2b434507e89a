package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nexconsult/adres-api/internal/models"
	"github.com/nexconsult/adres-api/internal/services"
)

// MetricsHandler handles metrics requests
type MetricsHandler struct {
	consultaService services.ConsultaServiceInterface
	cacheService    services.CacheServiceInterface
	browserService  services.BrowserServiceInterface
	logger          *logrus.Logger
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(consultaService services.ConsultaServiceInterface, cacheService services.CacheServiceInterface, browserService services.BrowserServiceInterface, logger *logrus.Logger) *MetricsHandler {
	return &MetricsHandler{
		consultaService: consultaService,
		cacheService:    cacheService,
		browserService:  browserService,
		logger:          logger,
	}
}

// GetMetrics handles metrics request
// @Summary Get application metrics
// @Description Lookup counters by outcome, cache hit rate, browser pool and runtime figures
// @Tags Metrics
// @Produce json
// @Success 200 {object} models.MetricsResponse
// @Router /metrics [get]
func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	h.logger.WithField("request_id", c.GetString("request_id")).Debug("Getting application metrics")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	consultas, cache := h.consultaService.GetMetrics()

	cacheStats, err := h.cacheService.GetStats(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Warn("Failed to read cache statistics")
	}
	if size, ok := cacheStats["size"].(int64); ok {
		cache.Size = size
	}

	browserStats := h.browserService.GetStats()

	c.JSON(http.StatusOK, models.MetricsResponse{
		Consultas: consultas,
		Cache:     cache,
		Browser: models.BrowserMetrics{
			ActiveBrowsers: getIntFromStats(browserStats, "in_use"),
			TotalBrowsers:  getIntFromStats(browserStats, "total_browsers"),
			QueueSize:      getIntFromStats(browserStats, "available"),
		},
		System: models.SystemMetrics{
			MemoryUsage: float64(m.Alloc) / 1024 / 1024, // MB
			Goroutines:  runtime.NumGoroutine(),
		},
		Timestamp: time.Now(),
	})
}

// Helper function to safely get int values from stats map
func getIntFromStats(stats map[string]interface{}, key string) int {
	if value, exists := stats[key]; exists {
		if intValue, ok := value.(int); ok {
			return intValue
		}
	}
	return 0
}
