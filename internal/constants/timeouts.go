// Package constants defines timeout values and retry limits used throughout the application.
package constants

import "time"

// Timeout constants for various operations
const (
	// Request timeout for the entire stream request
	RequestTimeout = 30 * time.Second

	// Upstream timeouts
	TMDBTimeout            = 8 * time.Second
	TMDBRetries            = 2
	YGGSearchTimeout       = 12 * time.Second
	YGGIDSearchTimeout     = 10 * time.Second
	YGGHashTimeout         = 8 * time.Second
	SharewoodTimeout       = 10 * time.Second
	AllDebridTimeout       = 10 * time.Second
	AllDebridUploadTimeout = 15 * time.Second

	// Background cleanup
	CleanupInterval        = time.Hour
	DefaultRetentionPeriod = 48 * time.Hour
	CleanupDelay           = time.Minute
)

// Cache lifetimes per category
const (
	TMDBCacheTTL    = 30 * 24 * time.Hour
	SearchCacheTTL  = 6 * time.Hour
	InstantCacheTTL = 5 * time.Minute
	MagnetCacheTTL  = 48 * time.Hour
	HashCacheTTL    = 12 * time.Hour
	ReadyCacheTTL   = 7 * 24 * time.Hour
	FilesCacheTTL   = 6 * time.Hour
	LinkCacheTTL    = time.Hour
	UnlockCacheTTL  = 5 * time.Minute
)
