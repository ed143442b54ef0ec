package constants

import "time"

// Default rate limiting configuration
const (
	// DefaultRateLimitRequests is the default number of requests allowed per time window
	DefaultRateLimitRequests = 100
	// DefaultRateLimitWindowMinutes is the default time window for rate limiting
	DefaultRateLimitWindowMinutes = 1
	// MonitoringRequestsPerMinute caps /health and / per client IP.
	MonitoringRequestsPerMinute = 60
)

// Defaults for the background task runner.
const (
	DefaultTaskWorkers   = 4
	DefaultTaskQueueSize = 256
	DefaultTaskTimeout   = 30 * time.Second
)

const (
	DefaultHTTPPort           = "5000"
	DefaultServiceName        = "lasting-loves-waitlist"
	DefaultSizeReportSchedule = "@every 5m"
)

// DefaultRateLimitWindow returns the default rate limit window duration
func DefaultRateLimitWindow() time.Duration {
	return time.Duration(DefaultRateLimitWindowMinutes) * time.Minute
}
