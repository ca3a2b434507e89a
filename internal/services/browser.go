package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nexconsult/adres-api/internal/browser"
	"github.com/nexconsult/adres-api/internal/config"
)

// ErrPoolClosed is returned once the browser service has been closed.
var ErrPoolClosed = errors.New("browser service is closed")

// resetTimeout bounds the cleanup done when a browser goes back to the pool.
const resetTimeout = 15 * time.Second

// BrowserService manages a pool of browser contexts
type BrowserService struct {
	config   config.BrowserConfig
	logger   *logrus.Logger
	launch   func() (BrowserContext, error)
	pool     chan BrowserContext
	contexts []BrowserContext
	mu       sync.RWMutex
	closed   bool
}

// ChromeBrowserContext is a Chrome process driven through browser.ChromeDriver
type ChromeBrowserContext struct {
	*browser.ChromeDriver

	id      string
	cancel  context.CancelFunc
	healthy bool
	mu      sync.RWMutex
}

// NewBrowserService creates a new browser service
func NewBrowserService(cfg config.BrowserConfig, logger *logrus.Logger) (*BrowserService, error) {
	opts := browser.Options{
		Headless:  cfg.Headless,
		UserAgent: cfg.UserAgent,
		ExecPath:  cfg.ExecPath,
	}
	launch := func() (BrowserContext, error) {
		browserCtx, err := launchChrome(opts, cfg.BrowserTimeout, logger)
		if err != nil {
			return nil, err
		}
		return browserCtx, nil
	}
	return newBrowserService(cfg, launch, logger), nil
}

func newBrowserService(cfg config.BrowserConfig, launch func() (BrowserContext, error), logger *logrus.Logger) *BrowserService {
	service := &BrowserService{
		config:   cfg,
		logger:   logger,
		launch:   launch,
		pool:     make(chan BrowserContext, cfg.MaxBrowsers),
		contexts: make([]BrowserContext, 0, cfg.MaxBrowsers),
	}

	// Initialize minimum browsers
	for i := 0; i < cfg.MinBrowsers; i++ {
		browserCtx, err := service.launch()
		if err != nil {
			logger.WithError(err).Error("Failed to create initial browser")
			continue
		}
		service.contexts = append(service.contexts, browserCtx)
		service.pool <- browserCtx
	}

	logger.WithField("browsers", len(service.contexts)).Info("Browser service initialized")
	return service
}

// GetBrowser takes an idle browser, starts a new one while under
// MaxBrowsers, or waits for a release.
func (s *BrowserService) GetBrowser(ctx context.Context) (BrowserContext, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrPoolClosed
	}
	s.mu.RUnlock()

	select {
	case browserCtx := <-s.pool:
		return s.checked(browserCtx)
	default:
	}

	if browserCtx, ok, err := s.grow(); ok || err != nil {
		return browserCtx, err
	}

	wait := s.config.BrowserTimeout
	if wait <= 0 {
		wait = 10 * time.Second
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case browserCtx, ok := <-s.pool:
		if !ok {
			return nil, ErrPoolClosed
		}
		return s.checked(browserCtx)
	case <-timer.C:
		return nil, fmt.Errorf("no browser available and pool is at maximum capacity")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// grow starts a browser when the pool is below its maximum.
func (s *BrowserService) grow() (BrowserContext, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, ErrPoolClosed
	}
	if len(s.contexts) >= s.config.MaxBrowsers {
		return nil, false, nil
	}
	browserCtx, err := s.launch()
	if err != nil {
		return nil, false, fmt.Errorf("failed to create browser: %w", err)
	}
	s.contexts = append(s.contexts, browserCtx)
	return browserCtx, true, nil
}

// checked replaces an unhealthy browser taken from the pool.
func (s *BrowserService) checked(browserCtx BrowserContext) (BrowserContext, error) {
	if browserCtx.IsHealthy() {
		return browserCtx, nil
	}
	s.logger.WithField("browser_id", browserCtx.GetID()).Warn("Unhealthy browser detected, creating new one")
	s.discard(browserCtx)

	fresh, ok, err := s.grow()
	if err != nil {
		return nil, fmt.Errorf("failed to create new browser: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("no browser available and pool is at maximum capacity")
	}
	return fresh, nil
}

// discard closes a browser and forgets it.
func (s *BrowserService) discard(browserCtx BrowserContext) {
	_ = browserCtx.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.contexts {
		if c == browserCtx {
			s.contexts = append(s.contexts[:i], s.contexts[i+1:]...)
			break
		}
	}
}

// ReleaseBrowser resets a browser and returns it to the pool
func (s *BrowserService) ReleaseBrowser(browserCtx BrowserContext) error {
	if browserCtx == nil {
		return fmt.Errorf("invalid browser context")
	}

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		_ = browserCtx.Close()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
	defer cancel()
	if err := browserCtx.Reset(ctx); err != nil {
		s.logger.WithError(err).WithField("browser_id", browserCtx.GetID()).Warn("Browser reset failed, discarding it")
		s.discard(browserCtx)
		return nil
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		_ = browserCtx.Close()
		return nil
	}
	select {
	case s.pool <- browserCtx:
		s.mu.RUnlock()
		return nil
	default:
	}
	s.mu.RUnlock()

	// Pool is full, close the browser
	s.discard(browserCtx)
	return nil
}

// launchChrome starts a Chrome process and checks it can load a page.
func launchChrome(opts browser.Options, startTimeout time.Duration, logger *logrus.Logger) (*ChromeBrowserContext, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), browser.AllocatorOptions(opts)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	if startTimeout <= 0 {
		startTimeout = 15 * time.Second
	}
	testCtx, testCancel := context.WithTimeout(context.Background(), startTimeout)
	defer testCancel()

	driver, err := browser.NewChromeDriver(tabCtx, logger)
	if err == nil {
		err = driver.Reset(testCtx)
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("browser health check failed: %w", err)
	}

	browserCtx := &ChromeBrowserContext{
		ChromeDriver: driver,
		id:           "browser-" + uuid.NewString()[:8],
		cancel:       cancel,
		healthy:      true,
	}
	logger.WithField("browser_id", browserCtx.id).Debug("Browser created successfully")
	return browserCtx, nil
}

// GetStats returns browser pool statistics
func (s *BrowserService) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	healthy := 0
	for _, ctx := range s.contexts {
		if ctx.IsHealthy() {
			healthy++
		}
	}

	return map[string]interface{}{
		"total_browsers":   len(s.contexts),
		"healthy_browsers": healthy,
		"available":        len(s.pool),
		"in_use":           len(s.contexts) - len(s.pool),
		"max_browsers":     s.config.MaxBrowsers,
		"min_browsers":     s.config.MinBrowsers,
	}
}

// Health returns browser service health status. An empty pool that can
// still grow is healthy; browsers start on demand.
func (s *BrowserService) Health() map[string]interface{} {
	stats := s.GetStats()
	total := stats["total_browsers"].(int)
	healthy := stats["healthy_browsers"].(int)

	status := "healthy"
	switch {
	case total > 0 && healthy == 0:
		status = "unhealthy"
	case healthy < s.config.MinBrowsers:
		status = "degraded"
	}

	return map[string]interface{}{
		"status": status,
		"stats":  stats,
	}
}

// Restart restarts the browser pool
func (s *BrowserService) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrPoolClosed
	}

	for _, ctx := range s.contexts {
		_ = ctx.Close()
	}
	for len(s.pool) > 0 {
		<-s.pool
	}
	s.contexts = s.contexts[:0]

	for i := 0; i < s.config.MinBrowsers; i++ {
		browserCtx, err := s.launch()
		if err != nil {
			s.logger.WithError(err).Error("Failed to create browser during restart")
			continue
		}
		s.contexts = append(s.contexts, browserCtx)
		s.pool <- browserCtx
	}

	s.logger.WithField("browsers", len(s.contexts)).Info("Browser pool restarted")
	return nil
}

// Close closes all browsers and releases resources
func (s *BrowserService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, ctx := range s.contexts {
		_ = ctx.Close()
	}
	for len(s.pool) > 0 {
		<-s.pool
	}
	close(s.pool)
	s.contexts = nil

	s.logger.Info("Browser service closed")
	return nil
}

// Reset cleans up after a session; a failure marks the browser unhealthy.
func (c *ChromeBrowserContext) Reset(ctx context.Context) error {
	if !c.IsHealthy() {
		return fmt.Errorf("browser context is not healthy")
	}
	if err := c.ChromeDriver.Reset(ctx); err != nil {
		c.mu.Lock()
		c.healthy = false
		c.mu.Unlock()
		return err
	}
	return nil
}

// Close stops the Chrome process
func (c *ChromeBrowserContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.healthy && c.cancel == nil {
		return nil
	}
	c.healthy = false
	err := c.ChromeDriver.Close()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return err
}

// IsHealthy checks if the browser context is healthy
func (c *ChromeBrowserContext) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

// GetID returns the browser context ID
func (c *ChromeBrowserContext) GetID() string {
	return c.id
}
