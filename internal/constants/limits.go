// Package constants defines numerical limits and conversion factors.
package constants

import "time"

// Limits and counts for various operations
const (
	// AllDebrid allows 12 requests per second per key.
	AllDebridMaxRequests = 12
	AllDebridWindow      = time.Second
	AllDebridMaxQueue    = 100

	// Circuit breaker around AllDebrid
	BreakerThreshold = 5
	BreakerTimeout   = 30 * time.Second

	// Remote cleanup: when more than MaxRemoteMagnets exist, delete the
	// MagnetsToDelete oldest ones.
	MaxRemoteMagnets = 100
	MagnetsToDelete  = 20

	// Indexer throttling
	YGGRateLimit       = 10 // requests per second
	YGGRateBurst       = 2
	SharewoodRateLimit = 5
	SharewoodRateBurst = 2

	// Conversion factors
	BytesToGB = 1024 * 1024 * 1024
)
