package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout    = 10 * time.Second
	WorkerShutdownTimeout = 30 * time.Second

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute

	// Worker timeouts
	WorkerCheckInterval     = 30 * time.Second
	WorkerHeartbeatInterval = 30 * time.Second
	WorkerTriggerThrottle   = 5 * time.Second
	WorkerSleepDuration     = 100 * time.Millisecond

	// WorkerRecomputeOverlap widens each recompute window backwards so attempts
	// stamped before a run started but committed after its scan are picked up
	WorkerRecomputeOverlap = 2 * time.Minute
)

// DefaultMaxHistory is the number of worker runs kept when server.max_history is unset
const DefaultMaxHistory = 50

// Security configuration constants
const (
	// Content Security Policy for the worker's operational endpoints
	DefaultCSP = "default-src 'none'; frame-ancestors 'none'"
)
