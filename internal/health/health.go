package health

import (
	"github.com/joescharf/crev/internal/config"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "crev"

// Status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Report describes whether the service can accept reviews.
type Report struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	Version        string `json:"version"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	APIConfigured  bool   `json:"api_configured"`
	MaxUploadBytes int64  `json:"max_upload_bytes"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	Error          string `json:"error,omitempty"`
}

// Healthy reports whether the service is ready.
func (r Report) Healthy() bool {
	return r.Status == StatusHealthy
}

// Check computes readiness from configuration alone; it never calls the
// upstream model.
func Check(cfg config.Config, version string) Report {
	r := Report{
		Status:         StatusHealthy,
		Service:        ServiceName,
		Version:        version,
		Provider:       cfg.Provider,
		Model:          cfg.Model,
		APIConfigured:  cfg.APIKeyConfigured(),
		MaxUploadBytes: cfg.Review.MaxUploadBytes,
		TimeoutSeconds: int(cfg.Review.Timeout.Seconds()),
	}
	if !r.APIConfigured {
		r.Status = StatusUnhealthy
		r.Error = "no API key configured for provider " + cfg.Provider
	}
	return r
}
