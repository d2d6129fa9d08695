package services

import (
	"context"
	"sync"
	"time"

	"github.com/amaumene/miaou/internal/constants"
	"github.com/amaumene/miaou/internal/database"
	"github.com/amaumene/miaou/pkg/logger"
	"github.com/amaumene/miaou/pkg/security"
)

// KeyRegistry remembers, in memory only, which debrid key belongs to which
// fingerprint so uploads can be cleaned up later.
type KeyRegistry struct {
	mu        sync.RWMutex
	keys      map[string]string
	validator *security.APIKeyValidator
}

func NewKeyRegistry() *KeyRegistry {
	return &KeyRegistry{
		keys:      make(map[string]string),
		validator: security.NewAPIKeyValidator(),
	}
}

// Register records apiKey and returns its fingerprint.
func (r *KeyRegistry) Register(apiKey string) string {
	fp := r.validator.Fingerprint(apiKey)
	r.mu.Lock()
	r.keys[fp] = apiKey
	r.mu.Unlock()
	return fp
}

func (r *KeyRegistry) Lookup(fingerprint string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.keys[fingerprint]
	return key, ok
}

type magnetDeleter interface {
	DeleteMagnets(ctx context.Context, ids []int64, apiKey string) error
	Forget(fingerprint string, magnets []DeletedMagnet)
}

// CleanupService periodically deletes uploads older than the retention period
// from the debrid account and from the ledger.
type CleanupService struct {
	db              database.Database
	debrid          magnetDeleter
	keys            *KeyRegistry
	logger          logger.Logger
	interval        time.Duration
	retentionPeriod time.Duration
	mu              sync.Mutex
	running         bool
	stopChan        chan struct{}
	validator       *security.APIKeyValidator
}

// NewCleanupService creates a new cleanup service
func NewCleanupService(db database.Database, debrid magnetDeleter, keys *KeyRegistry, log logger.Logger) *CleanupService {
	return &CleanupService{
		db:              db,
		debrid:          debrid,
		keys:            keys,
		logger:          log,
		interval:        constants.CleanupInterval,
		retentionPeriod: constants.DefaultRetentionPeriod,
		validator:       security.NewAPIKeyValidator(),
	}
}

// SetRetentionPeriod sets how long to keep magnets before cleanup
func (c *CleanupService) SetRetentionPeriod(duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retentionPeriod = duration
}

// SetInterval sets how often cleanup runs
func (c *CleanupService) SetInterval(duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = duration
}

// Start begins the cleanup service. The first sweep runs after one interval.
func (c *CleanupService) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.stopChan = make(chan struct{})
	interval, stop := c.interval, c.stopChan
	c.mu.Unlock()

	c.logger.Infof("[Cleanup] starting with interval %v, retention %v", interval, c.retentionPeriod)
	go c.cleanupLoop(ctx, interval, stop)
	return nil
}

// Stop stops the cleanup service
func (c *CleanupService) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}

	c.running = false
	close(c.stopChan)
	c.logger.Infof("[Cleanup] stopped")
}

func (c *CleanupService) cleanupLoop(ctx context.Context, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Stop()
			return
		case <-stop:
			return
		case <-ticker.C:
			c.performCleanup(ctx)
		}
	}
}

func (c *CleanupService) performCleanup(ctx context.Context) int {
	oldMagnets, err := c.fetchOldMagnets()
	if err != nil || len(oldMagnets) == 0 {
		return 0
	}

	byKey := c.groupMagnetsByFingerprint(oldMagnets)
	removable := c.cleanupDebridConcurrently(ctx, byKey)

	cleaned := c.deleteMagnetsFromDatabase(removable)
	c.logger.Infof("[Cleanup] %d magnets removed from ledger", cleaned)
	return cleaned
}

// CleanupNow runs one sweep and returns the number of ledger rows removed.
func (c *CleanupService) CleanupNow(ctx context.Context) int {
	return c.performCleanup(ctx)
}
