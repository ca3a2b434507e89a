package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nexconsult/adres-api/internal/captcha"
	"github.com/nexconsult/adres-api/internal/config"
	"github.com/nexconsult/adres-api/internal/extraction"
)

// Container holds all service dependencies
type Container struct {
	config          *config.Config
	logger          *logrus.Logger
	redisClient     *redis.Client
	stopCleanup     context.CancelFunc
	ConsultaService ConsultaServiceInterface
	CacheService    CacheServiceInterface
	BrowserService  BrowserServiceInterface
	CaptchaService  CaptchaServiceInterface
}

// NewContainer creates a new service container
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	container := &Container{
		config: cfg,
		logger: logger,
	}

	// Initialize Redis client
	if err := container.initRedis(); err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	// Initialize services
	if err := container.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return container, nil
}

// initRedis initializes Redis client
func (c *Container) initRedis() error {
	c.redisClient = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", c.config.Redis.Host, c.config.Redis.Port),
		Password:     c.config.Redis.Password,
		DB:           c.config.Redis.DB,
		PoolSize:     c.config.Redis.PoolSize,
		DialTimeout:  c.config.Redis.DialTimeout,
		ReadTimeout:  c.config.Redis.ReadTimeout,
		WriteTimeout: c.config.Redis.WriteTimeout,
	})

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Redis.DialTimeout+time.Second)
	defer cancel()
	if err := c.redisClient.Ping(ctx).Err(); err != nil {
		c.logger.WithError(err).Warn("Redis connection failed, running with in-memory cache")
		_ = c.redisClient.Close()
		c.redisClient = nil
	} else {
		c.logger.Info("Redis connection established")
	}

	return nil
}

// initServices initializes all services
func (c *Container) initServices() error {
	// Initialize Cache Service
	cache := NewCacheService(c.redisClient, c.config.ADRES.CacheTTL, c.logger)
	cleanupCtx, stop := context.WithCancel(context.Background())
	cache.StartCleanupRoutine(cleanupCtx, 5*time.Minute)
	c.stopCleanup = stop
	c.CacheService = cache

	// Initialize Browser Service
	browserService, err := NewBrowserService(c.config.Browser, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize browser service: %w", err)
	}
	c.BrowserService = browserService

	solver, err := c.captchaSolver()
	if err != nil {
		return fmt.Errorf("failed to initialize captcha solver: %w", err)
	}

	// Initialize Consulta Service
	c.ConsultaService = NewConsultaService(c.config.ADRES, solver, c.config.Captcha.AnswerTimeout, c.CacheService, c.BrowserService, c.logger)

	c.logger.WithFields(logrus.Fields{
		"captcha_mode":   c.config.Captcha.Mode,
		"max_concurrent": c.config.ADRES.MaxConcurrent,
	}).Info("Services initialized")
	return nil
}

// captchaSolver returns the shared solver for the configured mode; nil
// means lookups wait for an answer through the API.
func (c *Container) captchaSolver() (extraction.CaptchaSolver, error) {
	switch c.config.Captcha.Mode {
	case config.CaptchaModeManual:
		return nil, nil
	case config.CaptchaModeStdin:
		return captcha.NewStdinSolver(os.Stdin, os.Stderr), nil
	case config.CaptchaModeSolveCaptcha:
		client := captcha.NewSolveCaptchaClient(
			c.config.Captcha.SolveCaptchaAPIKey,
			c.logger,
			captcha.WithBaseURL(c.config.Captcha.SolveCaptchaURL),
			captcha.WithRetries(c.config.Captcha.MaxRetries),
		)
		c.CaptchaService = client
		return client, nil
	default:
		return nil, fmt.Errorf("unknown captcha mode %q", c.config.Captcha.Mode)
	}
}

// Close closes all service connections
func (c *Container) Close() error {
	var errs []error

	// Stop running lookups first; they hold browsers
	if c.ConsultaService != nil {
		if err := c.ConsultaService.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close consulta service: %w", err))
		}
	}

	if c.BrowserService != nil {
		if err := c.BrowserService.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser service: %w", err))
		}
	}

	if c.stopCleanup != nil {
		c.stopCleanup()
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}
	return nil
}

// Health checks the health of all services
func (c *Container) Health() map[string]interface{} {
	health := make(map[string]interface{})

	// Check Redis health
	if c.redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.redisClient.Ping(ctx).Err(); err != nil {
			health["redis"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
		} else {
			health["redis"] = map[string]interface{}{
				"status": "healthy",
			}
		}
	} else {
		health["redis"] = map[string]interface{}{
			"status": "disabled",
		}
	}

	if c.BrowserService != nil {
		health["browser"] = c.BrowserService.Health()
	}

	if c.ConsultaService != nil {
		health["consulta"] = c.ConsultaService.Health()
	}

	if c.CaptchaService != nil {
		health["captcha"] = c.captchaHealth()
	}

	return health
}

// captchaHealth is the solver's own status plus the account balance.
func (c *Container) captchaHealth() map[string]interface{} {
	h := c.CaptchaService.Health()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	balance, err := c.CaptchaService.GetBalance(ctx)
	if err != nil {
		h["status"] = "degraded"
		h["error"] = "balance: " + err.Error()
		return h
	}
	h["balance"] = balance
	if balance <= 0 {
		h["status"] = "degraded"
	}
	return h
}

// GetRedisClient returns the Redis client
func (c *Container) GetRedisClient() *redis.Client {
	return c.redisClient
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logrus.Logger {
	return c.logger
}
