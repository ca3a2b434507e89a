package captcha

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the SolveCaptcha API.
	DefaultBaseURL = "https://api.solvecaptcha.com"

	statusNotReady = "CAPCHA_NOT_READY"
)

var (
	// ErrNoImage is returned when there is no picture to send to the API.
	ErrNoImage = errors.New("captcha image is empty")
	// ErrSolveTimeout is returned when the API never produced an answer.
	ErrSolveTimeout = errors.New("timeout waiting for captcha solution")
)

// APIError is an error reported by the SolveCaptcha API itself.
type APIError struct {
	Code string
	Text string
}

func (e *APIError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("solvecaptcha: %s (%s)", e.Code, e.Text)
	}
	return "solvecaptcha: " + e.Code
}

// SolveCaptchaClient sends image CAPTCHAs to the SolveCaptcha API.
type SolveCaptchaClient struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	maxRetries   int
	timeout      time.Duration
	pollInterval time.Duration
	logger       *logrus.Logger

	mu    sync.RWMutex
	stats Stats
}

// Stats counts API usage.
type Stats struct {
	TotalRequests   int64         `json:"total_requests"`
	SuccessRequests int64         `json:"success_requests"`
	FailedRequests  int64         `json:"failed_requests"`
	AverageTime     time.Duration `json:"average_time"`
	LastRequest     time.Time     `json:"last_request"`
}

// apiResponse is the json=1 envelope of in.php and res.php.
type apiResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
	Error   string `json:"error_text,omitempty"`
}

// Option customizes a SolveCaptchaClient.
type Option func(*SolveCaptchaClient)

// WithBaseURL points the client at another API host.
func WithBaseURL(u string) Option {
	return func(c *SolveCaptchaClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *SolveCaptchaClient) { c.httpClient = hc }
}

// WithPolling sets how often res.php is asked and for how long.
func WithPolling(interval, timeout time.Duration) Option {
	return func(c *SolveCaptchaClient) {
		c.pollInterval = interval
		c.timeout = timeout
	}
}

// WithRateLimit sets the request rate towards the API.
func WithRateLimit(every time.Duration, burst int) Option {
	return func(c *SolveCaptchaClient) { c.limiter = rate.NewLimiter(rate.Every(every), burst) }
}

// WithRetries sets how many submissions are attempted per CAPTCHA.
func WithRetries(n int) Option {
	return func(c *SolveCaptchaClient) { c.maxRetries = n }
}

// NewSolveCaptchaClient returns a client for apiKey.
func NewSolveCaptchaClient(apiKey string, logger *logrus.Logger, opts ...Option) *SolveCaptchaClient {
	c := &SolveCaptchaClient{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		limiter:      rate.NewLimiter(rate.Every(time.Second), 2),
		maxRetries:   2,
		timeout:      2 * time.Minute,
		pollInterval: 5 * time.Second,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SolveCaptcha sends the PNG to the API and waits for its text.
func (c *SolveCaptchaClient) SolveCaptcha(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", ErrNoImage
	}
	start := time.Now()

	c.mu.Lock()
	c.stats.TotalRequests++
	c.stats.LastRequest = start
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.stats.AverageTime = (c.stats.AverageTime + time.Since(start)) / 2
		c.mu.Unlock()
	}()

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"backoff": backoff.String(),
			}).Warn("Retrying captcha resolution")

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := c.solveAttempt(ctx, image)
		if err == nil {
			c.mu.Lock()
			c.stats.SuccessRequests++
			c.mu.Unlock()

			c.logger.WithFields(logrus.Fields{
				"duration": time.Since(start).String(),
				"attempt":  attempt + 1,
			}).Info("Captcha resolved")
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		c.logger.WithError(err).WithField("attempt", attempt+1).Error("Captcha resolution failed")
	}

	c.mu.Lock()
	c.stats.FailedRequests++
	c.mu.Unlock()

	return "", fmt.Errorf("failed to solve captcha after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *SolveCaptchaClient) solveAttempt(ctx context.Context, image []byte) (string, error) {
	id, err := c.submit(ctx, image)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	c.logger.WithField("captcha_id", id).Debug("Captcha submitted")

	text, err := c.waitForSolution(ctx, id)
	if err != nil {
		return "", fmt.Errorf("wait: %w", err)
	}
	return text, nil
}

func (c *SolveCaptchaClient) submit(ctx context.Context, image []byte) (string, error) {
	form := url.Values{
		"key":    {c.apiKey},
		"method": {"base64"},
		"body":   {base64.StdEncoding.EncodeToString(image)},
		"json":   {"1"},
	}
	res, err := c.call(ctx, http.MethodPost, "/in.php", form)
	if err != nil {
		return "", err
	}
	if res.Status != 1 {
		return "", &APIError{Code: res.Request, Text: res.Error}
	}
	return res.Request, nil
}

func (c *SolveCaptchaClient) waitForSolution(ctx context.Context, id string) (string, error) {
	start := time.Now()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(c.timeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timeout.C:
			return "", ErrSolveTimeout
		case <-ticker.C:
		}

		res, err := c.call(ctx, http.MethodGet, "/res.php", url.Values{
			"key":    {c.apiKey},
			"action": {"get"},
			"id":     {id},
			"json":   {"1"},
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			c.logger.WithError(err).Warn("Error checking captcha solution")
			continue
		}

		switch {
		case res.Status == 1:
			c.logger.WithFields(logrus.Fields{
				"captcha_id": id,
				"duration":   time.Since(start).String(),
			}).Debug("Captcha solution ready")
			return res.Request, nil
		case res.Request == statusNotReady:
			continue
		default:
			return "", &APIError{Code: res.Request, Text: res.Error}
		}
	}
}

// GetBalance returns the account balance.
func (c *SolveCaptchaClient) GetBalance(ctx context.Context) (float64, error) {
	res, err := c.call(ctx, http.MethodGet, "/res.php", url.Values{
		"key":    {c.apiKey},
		"action": {"getbalance"},
		"json":   {"1"},
	})
	if err != nil {
		return 0, err
	}
	if res.Status != 1 {
		return 0, &APIError{Code: res.Request, Text: res.Error}
	}
	balance, err := strconv.ParseFloat(res.Request, 64)
	if err != nil {
		return 0, fmt.Errorf("parse balance %q: %w", res.Request, err)
	}
	return balance, nil
}

func (c *SolveCaptchaClient) call(ctx context.Context, method, path string, params url.Values) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var (
		req *http.Request
		err error
	)
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+params.Encode(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var res apiResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	return &res, nil
}

// GetStats returns a copy of the usage counters.
func (c *SolveCaptchaClient) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// IsHealthy is false once most requests fail.
func (c *SolveCaptchaClient) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.stats.TotalRequests == 0 {
		return true
	}
	if c.stats.SuccessRequests == 0 {
		return false
	}
	return float64(c.stats.SuccessRequests)/float64(c.stats.TotalRequests) > 0.5
}

// Health returns the solver status for the health endpoint.
func (c *SolveCaptchaClient) Health() map[string]interface{} {
	status := "healthy"
	if !c.IsHealthy() {
		status = "degraded"
	}
	return map[string]interface{}{
		"status": status,
		"mode":   "solvecaptcha",
		"stats":  c.GetStats(),
	}
}
