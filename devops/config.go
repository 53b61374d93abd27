package devops

import "time"

// Config holds client configuration.
type Config struct {
	// Organization is the Azure DevOps organization name.
	Organization string

	// BaseURL is the API host for builds and pipelines.
	BaseURL string

	// VSRMBaseURL is the API host for Classic Releases.
	VSRMBaseURL string

	// APIVersion is appended to every request as the api-version parameter.
	APIVersion string

	// Retry settings
	RetryAttempts int           // physical attempts per logical call
	RetryDelay    time.Duration // base delay for exponential backoff
	Timeout       time.Duration // per-attempt timeout

	// Outbound pacing across all calls. Generous by default; the per-caller
	// quota is enforced upstream by the sliding-window limiter.
	GlobalRPS   float64
	GlobalBurst int
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://dev.azure.com",
		VSRMBaseURL:   "https://vsrm.dev.azure.com",
		APIVersion:    "7.1",
		RetryAttempts: 3,
		RetryDelay:    2 * time.Second,
		Timeout:       30 * time.Second,
		GlobalRPS:     25,
		GlobalBurst:   10,
	}
}
