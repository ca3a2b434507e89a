package services

import (
	"context"

	"github.com/nexconsult/adres-api/internal/extraction"
	"github.com/nexconsult/adres-api/internal/models"
)

// ConsultaServiceInterface defines the interface for BDUA lookups
type ConsultaServiceInterface interface {
	// Start validates the request and launches a lookup in the background.
	// A cached result is returned already completed.
	Start(ctx context.Context, req models.ConsultaRequest) (*models.Consulta, error)

	// Get returns a snapshot of a lookup
	Get(id string) (*models.Consulta, error)

	// CaptchaImage returns the CAPTCHA picture a lookup is waiting on
	CaptchaImage(id string) ([]byte, error)

	// AnswerCaptcha delivers the text typed by the user
	AnswerCaptcha(id, text string) error

	// Last returns the most recently finished lookup
	Last() (*models.Consulta, error)

	// GetMetrics returns lookup and cache counters
	GetMetrics() (models.ConsultaMetrics, models.CacheMetrics)

	// Health returns service health status
	Health() map[string]interface{}

	// Close cancels running lookups and waits for them
	Close() error
}

// CacheServiceInterface defines the interface for cache service
type CacheServiceInterface interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value string) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Clear clears all cache entries
	Clear(ctx context.Context) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)

	// GetStats returns cache statistics
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Health returns cache service health status
	Health() map[string]interface{}
}

// BrowserServiceInterface defines the interface for browser service
type BrowserServiceInterface interface {
	// GetBrowser gets an available browser context
	GetBrowser(ctx context.Context) (BrowserContext, error)

	// ReleaseBrowser resets a browser context and returns it to the pool
	ReleaseBrowser(browserCtx BrowserContext) error

	// GetStats returns browser pool statistics
	GetStats() map[string]interface{}

	// Health returns browser service health status
	Health() map[string]interface{}

	// Restart restarts the browser pool
	Restart() error

	// Close closes all browsers and releases resources
	Close() error
}

// BrowserContext is one pooled browser, driven by a single session at a time.
type BrowserContext interface {
	extraction.Driver

	// Reset closes extra windows and leaves the first on a blank page
	Reset(ctx context.Context) error

	// Close closes the browser
	Close() error

	// IsHealthy checks if the browser is usable
	IsHealthy() bool

	// GetID returns the browser ID
	GetID() string
}

// CaptchaServiceInterface defines the interface for the paid captcha solver
type CaptchaServiceInterface interface {
	// SolveCaptcha solves a captcha image
	SolveCaptcha(ctx context.Context, imageData []byte) (string, error)

	// GetBalance gets the current balance
	GetBalance(ctx context.Context) (float64, error)

	// Health returns captcha service health status
	Health() map[string]interface{}
}
