package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Captcha modes.
const (
	CaptchaModeManual       = "manual"
	CaptchaModeStdin        = "stdin"
	CaptchaModeSolveCaptcha = "solvecaptcha"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `json:"server"`
	Redis    RedisConfig    `json:"redis"`
	ADRES    ADRESConfig    `json:"adres"`
	Captcha  CaptchaConfig  `json:"captcha"`
	Log      LogConfig      `json:"log"`
	Security SecurityConfig `json:"security"`
	Browser  BrowserConfig  `json:"browser"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         int    `json:"port"`
	Environment  string `json:"environment"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	IdleTimeout  int    `json:"idle_timeout"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"-"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// ADRESConfig holds the BDUA lookup configuration
type ADRESConfig struct {
	PortalURL         string        `json:"portal_url"`
	LookupTimeout     time.Duration `json:"lookup_timeout"`
	PageLoadTimeout   time.Duration `json:"page_load_timeout"`
	TransitionTimeout time.Duration `json:"transition_timeout"`
	PollInterval      time.Duration `json:"poll_interval"`
	LocatorTimeout    time.Duration `json:"locator_timeout"`
	StrategyTimeout   time.Duration `json:"strategy_timeout"`
	ResultWaitTimeout time.Duration `json:"result_wait_timeout"`
	CacheTTL          time.Duration `json:"cache_ttl"`
	MaxConcurrent     int           `json:"max_concurrent"`
	ResultFile        string        `json:"result_file"`
}

// CaptchaConfig holds CAPTCHA resolution configuration
type CaptchaConfig struct {
	Mode               string        `json:"mode"`
	SolveCaptchaAPIKey string        `json:"-"`
	SolveCaptchaURL    string        `json:"solve_captcha_url"`
	AnswerTimeout      time.Duration `json:"answer_timeout"`
	MaxRetries         int           `json:"max_retries"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `json:"rate_limit"`
	CORS      CORSConfig      `json:"cors"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	BurstSize         int           `json:"burst_size"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// BrowserConfig holds browser automation configuration
type BrowserConfig struct {
	MinBrowsers    int           `json:"min_browsers"`
	MaxBrowsers    int           `json:"max_browsers"`
	BrowserTimeout time.Duration `json:"browser_timeout"`
	Headless       bool          `json:"headless"`
	ExecPath       string        `json:"exec_path"`
	UserAgent      string        `json:"user_agent"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("PORT", 8080),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 30),
			IdleTimeout:  getEnvAsInt("IDLE_TIMEOUT", 60),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  time.Duration(getEnvAsInt("REDIS_DIAL_TIMEOUT", 5)) * time.Second,
			ReadTimeout:  time.Duration(getEnvAsInt("REDIS_READ_TIMEOUT", 3)) * time.Second,
			WriteTimeout: time.Duration(getEnvAsInt("REDIS_WRITE_TIMEOUT", 3)) * time.Second,
		},
		ADRES: ADRESConfig{
			PortalURL:         getEnv("ADRES_PORTAL_URL", "https://www.adres.gov.co/consulte-su-eps"),
			LookupTimeout:     time.Duration(getEnvAsInt("LOOKUP_TIMEOUT", 300)) * time.Second,
			PageLoadTimeout:   time.Duration(getEnvAsInt("PAGE_LOAD_TIMEOUT", 20)) * time.Second,
			TransitionTimeout: time.Duration(getEnvAsInt("TRANSITION_TIMEOUT", 90)) * time.Second,
			PollInterval:      time.Duration(getEnvAsInt("POLL_INTERVAL_MS", 1000)) * time.Millisecond,
			LocatorTimeout:    time.Duration(getEnvAsInt("LOCATOR_TIMEOUT", 20)) * time.Second,
			StrategyTimeout:   time.Duration(getEnvAsInt("STRATEGY_TIMEOUT", 10)) * time.Second,
			ResultWaitTimeout: time.Duration(getEnvAsInt("RESULT_WAIT_TIMEOUT", 25)) * time.Second,
			CacheTTL:          time.Duration(getEnvAsInt("CACHE_TTL", 3600)) * time.Second,
			MaxConcurrent:     getEnvAsInt("MAX_CONCURRENT", 2),
			ResultFile:        getEnv("RESULT_FILE", "resultado_adres.json"),
		},
		Captcha: CaptchaConfig{
			Mode:               strings.ToLower(getEnv("CAPTCHA_MODE", CaptchaModeManual)),
			SolveCaptchaAPIKey: getEnv("SOLVE_CAPTCHA_API_KEY", ""),
			SolveCaptchaURL:    getEnv("SOLVE_CAPTCHA_URL", "https://api.solvecaptcha.com"),
			AnswerTimeout:      time.Duration(getEnvAsInt("CAPTCHA_ANSWER_TIMEOUT", 180)) * time.Second,
			MaxRetries:         getEnvAsInt("CAPTCHA_MAX_RETRIES", 2),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 60),
				BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 10),
				CleanupInterval:   time.Duration(getEnvAsInt("RATE_LIMIT_CLEANUP", 60)) * time.Second,
			},
			CORS: CORSConfig{
				AllowedOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
				AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
				AllowCredentials: false,
			},
		},
		Browser: BrowserConfig{
			MinBrowsers:    getEnvAsInt("BROWSER_MIN", 1),
			MaxBrowsers:    getEnvAsInt("BROWSER_MAX", 3),
			BrowserTimeout: time.Duration(getEnvAsInt("BROWSER_TIMEOUT", 60)) * time.Second,
			Headless:       getEnvAsBool("BROWSER_HEADLESS", true),
			ExecPath:       getEnv("CHROME_PATH", ""),
			UserAgent:      getEnv("BROWSER_USER_AGENT", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	var errs []error

	switch c.Captcha.Mode {
	case CaptchaModeManual, CaptchaModeStdin:
	case CaptchaModeSolveCaptcha:
		if c.Captcha.SolveCaptchaAPIKey == "" {
			errs = append(errs, errors.New("SOLVE_CAPTCHA_API_KEY is required when CAPTCHA_MODE=solvecaptcha"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid CAPTCHA_MODE %q", c.Captcha.Mode))
	}

	if c.ADRES.PortalURL == "" {
		errs = append(errs, errors.New("ADRES_PORTAL_URL is required"))
	}
	if c.ADRES.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL_MS must be positive"))
	}
	if c.ADRES.StrategyTimeout > c.ADRES.LocatorTimeout {
		errs = append(errs, errors.New("STRATEGY_TIMEOUT cannot exceed LOCATOR_TIMEOUT"))
	}
	if c.ADRES.MaxConcurrent < 1 {
		errs = append(errs, errors.New("MAX_CONCURRENT must be at least 1"))
	}
	if c.Browser.MinBrowsers < 0 || c.Browser.MaxBrowsers < 1 || c.Browser.MinBrowsers > c.Browser.MaxBrowsers {
		errs = append(errs, fmt.Errorf("invalid browser pool size %d..%d", c.Browser.MinBrowsers, c.Browser.MaxBrowsers))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
