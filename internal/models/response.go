package models

import (
	"time"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error" example:"Invalid document number"`
	Message   string    `json:"message" example:"must be 3 to 20 letters or digits"`
	Code      string    `json:"code,omitempty" example:"INVALID_DOCUMENT"`
	Timestamp time.Time `json:"timestamp" example:"2024-01-15T10:30:00Z"`
	Path      string    `json:"path" example:"/api/v1/consultas"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status" example:"healthy"`
	Timestamp time.Time              `json:"timestamp" example:"2024-01-15T10:30:00Z"`
	Version   string                 `json:"version" example:"1.0.0"`
	Services  map[string]ServiceInfo `json:"services"`
	Uptime    string                 `json:"uptime" example:"2h30m45s"`
}

// ServiceInfo represents individual service health
type ServiceInfo struct {
	Status         string    `json:"status" example:"healthy"`
	LastCheck      time.Time `json:"last_check" example:"2024-01-15T10:30:00Z"`
	ResponseTimeMs int64     `json:"response_time_ms" example:"15"`
	Error          string    `json:"error,omitempty"`
}

// MetricsResponse represents metrics response
type MetricsResponse struct {
	Consultas ConsultaMetrics `json:"consultas"`
	Cache     CacheMetrics    `json:"cache"`
	Browser   BrowserMetrics  `json:"browser"`
	System    SystemMetrics   `json:"system"`
	Timestamp time.Time       `json:"timestamp" example:"2024-01-15T10:30:00Z"`
}

// ConsultaMetrics counts lookups by outcome
type ConsultaMetrics struct {
	Total             int64   `json:"total" example:"120"`
	InProgress        int64   `json:"in_progress" example:"1"`
	Success           int64   `json:"success" example:"95"`
	NotFound          int64   `json:"not_found" example:"10"`
	CaptchaRejected   int64   `json:"captcha_rejected" example:"9"`
	Failed            int64   `json:"failed" example:"6"`
	SuccessRate       float64 `json:"success_rate" example:"79.17"`
	AvgResponseTimeMs int64   `json:"avg_response_time_ms" example:"41000"`
}

// CacheMetrics represents cache metrics
type CacheMetrics struct {
	HitRate float64 `json:"hit_rate" example:"35.5"`
	Hits    int64   `json:"hits" example:"42"`
	Misses  int64   `json:"misses" example:"78"`
	Size    int64   `json:"size" example:"64"`
}

// BrowserMetrics represents browser metrics
type BrowserMetrics struct {
	ActiveBrowsers int `json:"active_browsers" example:"1"`
	TotalBrowsers  int `json:"total_browsers" example:"2"`
	QueueSize      int `json:"queue_size" example:"1"`
}

// SystemMetrics represents system metrics
type SystemMetrics struct {
	MemoryUsage float64 `json:"memory_usage" example:"512.5"`
	Goroutines  int     `json:"goroutines" example:"25"`
}
