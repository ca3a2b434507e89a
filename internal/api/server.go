package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/nexconsult/adres-api/docs"
	"github.com/nexconsult/adres-api/internal/api/handlers"
	"github.com/nexconsult/adres-api/internal/api/middleware"
	"github.com/nexconsult/adres-api/internal/config"
	"github.com/nexconsult/adres-api/internal/services"
)

// Server represents the HTTP server
type Server struct {
	Router   *gin.Engine
	config   *config.Config
	logger   *logrus.Logger
	services *services.Container
	stop     context.CancelFunc
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, logger *logrus.Logger, services *services.Container) *Server {
	server := &Server{
		config:   cfg,
		logger:   logger,
		services: services,
	}

	server.setupRouter()
	return server
}

// Close stops background middleware work
func (s *Server) Close() {
	if s.stop != nil {
		s.stop()
	}
}

// setupRouter configures the router with all routes and middleware
func (s *Server) setupRouter() {
	s.Router = gin.New()

	// Global middleware
	s.Router.Use(middleware.RequestID())
	s.Router.Use(middleware.Logger(s.logger))
	s.Router.Use(middleware.Recovery(s.logger))
	s.Router.Use(middleware.CORS(s.config.Security.CORS))
	s.Router.Use(middleware.Security())

	// Health checks (no rate limiting)
	healthHandler := handlers.NewHealthHandler(s.services, s.logger)
	s.Router.GET("/health", healthHandler.GetHealth)
	s.Router.GET("/health/ready", healthHandler.GetReadiness)
	s.Router.GET("/health/live", healthHandler.GetLiveness)

	// Metrics endpoint
	metricsHandler := handlers.NewMetricsHandler(s.services.ConsultaService, s.services.CacheService, s.services.BrowserService, s.logger)
	s.Router.GET("/metrics", metricsHandler.GetMetrics)

	// Swagger documentation
	if !s.config.IsProduction() {
		s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		s.Router.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
		})
	}

	ctx, stop := context.WithCancel(context.Background())
	s.stop = stop
	rateLimiter := middleware.NewRateLimiter(ctx, s.config.Security.RateLimit)

	// API v1 routes
	v1 := s.Router.Group("/api/v1")
	v1.Use(rateLimiter.Middleware())
	{
		consultaHandler := handlers.NewConsultaHandler(s.services.ConsultaService, s.logger)
		consultas := v1.Group("/consultas")
		{
			consultas.POST("", consultaHandler.Start)
			consultas.GET("/ultima", consultaHandler.Last)
			consultas.GET("/:id", consultaHandler.Get)
			consultas.GET("/:id/captcha", consultaHandler.CaptchaImage)
			consultas.POST("/:id/captcha", consultaHandler.AnswerCaptcha)
		}

		cacheHandler := handlers.NewCacheHandler(s.services.CacheService, s.logger)
		cache := v1.Group("/cache")
		{
			cache.GET("/stats", cacheHandler.GetStats)
			cache.DELETE("/clear", cacheHandler.Clear)
			cache.DELETE("/:tipo/:numero", cacheHandler.Delete)
		}

		browserHandler := handlers.NewBrowserHandler(s.services.BrowserService, s.logger)
		browser := v1.Group("/browser")
		{
			browser.GET("/stats", browserHandler.GetStats)
			browser.POST("/restart", browserHandler.Restart)
			browser.GET("/health", browserHandler.GetHealth)
		}
	}

	// 404 handler
	s.Router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Not Found",
			"message":   "The requested resource was not found",
			"timestamp": time.Now(),
			"path":      c.Request.URL.Path,
		})
	})

	// 405 handler
	s.Router.HandleMethodNotAllowed = true
	s.Router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error":     "Method Not Allowed",
			"message":   "The requested method is not allowed for this resource",
			"timestamp": time.Now(),
			"path":      c.Request.URL.Path,
			"method":    c.Request.Method,
		})
	})
}
