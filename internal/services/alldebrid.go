package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amaumene/miaou/internal/cache"
	"github.com/amaumene/miaou/internal/constants"
	"github.com/amaumene/miaou/internal/database"
	apperrors "github.com/amaumene/miaou/internal/errors"
	"github.com/amaumene/miaou/internal/metrics"
	"github.com/amaumene/miaou/internal/models"
	"github.com/amaumene/miaou/pkg/alldebrid"
	"github.com/amaumene/miaou/pkg/circuitbreaker"
	"github.com/amaumene/miaou/pkg/logger"
	"github.com/amaumene/miaou/pkg/ratelimiter"
	"github.com/amaumene/miaou/pkg/security"
)

const (
	// background account cleanup budget
	accountCleanupTimeout = 30 * time.Second
)

// AllDebrid is the gateway to the debrid service. Every remote call waits on
// the shared sliding window, then goes through the circuit breaker. Cache
// reads never consume a slot.
type AllDebrid struct {
	client    *alldebrid.Client
	limiter   *ratelimiter.SlidingWindow
	breaker   *circuitbreaker.CircuitBreaker
	cache     *cache.Manager
	db        database.Database
	keys      *KeyRegistry
	logger    logger.Logger
	validator *security.APIKeyValidator

	background sync.WaitGroup
	cleaning   sync.Map
}

func NewAllDebrid(client *alldebrid.Client, c *cache.Manager, log logger.Logger) *AllDebrid {
	a := &AllDebrid{
		client:    client,
		limiter:   ratelimiter.NewSlidingWindow(constants.AllDebridMaxRequests, constants.AllDebridWindow, constants.AllDebridMaxQueue),
		cache:     c,
		keys:      NewKeyRegistry(),
		logger:    log,
		validator: security.NewAPIKeyValidator(),
	}
	a.breaker = circuitbreaker.New(circuitbreaker.Options{
		Name:      "AllDebrid",
		Threshold: constants.BreakerThreshold,
		Timeout:   constants.BreakerTimeout,
		// a rejected key or a bad request says nothing about the service
		IsFailure: apperrors.Retryable,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			log.Warnf("[AllDebrid] circuit breaker %s -> %s", from, to)
			metrics.BreakerState.WithLabelValues(name).Set(breakerGauge(to))
		},
	})
	metrics.BreakerState.WithLabelValues("AllDebrid").Set(0)
	return a
}

// SetDB attaches the magnet ledger. A nil ledger disables recording.
func (a *AllDebrid) SetDB(db database.Database) {
	a.db = db
}

// Keys returns the registry of keys seen by uploads.
func (a *AllDebrid) Keys() *KeyRegistry {
	return a.keys
}

// Wait blocks until background account cleanups have finished.
func (a *AllDebrid) Wait() {
	a.background.Wait()
}

// CheckAvailability reports what the caches know about hashes for the account
// of apiKey. Hashes absent from every cache are returned as unknown.
func (a *AllDebrid) CheckAvailability(hashes []string, apiKey string) (map[string]models.DebridMagnetStatus, []string) {
	fingerprint := a.validator.Fingerprint(a.validator.SanitizeAPIKey(apiKey))
	known := make(map[string]models.DebridMagnetStatus, len(hashes))
	var unknown []string

	instant, _ := cache.Lookup[map[string]models.DebridMagnetStatus](a.cache, cache.InstantKey(fingerprint, hashes))

	for _, h := range hashes {
		hash := strings.ToLower(h)
		if st, ok := a.readyStatus(fingerprint, hash); ok {
			known[hash] = st
			continue
		}
		if st, ok := instant[hash]; ok {
			known[hash] = st
			continue
		}
		if st, ok := cache.Lookup[models.DebridMagnetStatus](a.cache, cache.MagnetKey(fingerprint, hash)); ok {
			known[hash] = st
			continue
		}
		unknown = append(unknown, hash)
	}
	return known, unknown
}

// readyStatus returns the cached status of a hash known to be ready and
// already uploaded to the account.
func (a *AllDebrid) readyStatus(fingerprint, hash string) (models.DebridMagnetStatus, bool) {
	if ready, ok := cache.Lookup[bool](a.cache, cache.ReadyKey(hash)); !ok || !ready {
		return models.DebridMagnetStatus{}, false
	}
	st, ok := cache.Lookup[models.DebridMagnetStatus](a.cache, cache.MagnetKey(fingerprint, hash))
	if !ok || st.DebridID == 0 {
		return models.DebridMagnetStatus{}, false
	}
	st.Ready = true
	return st, true
}

// UploadMagnets returns the debrid status of every magnet. Magnets already
// known to be ready are served from the cache; the rest are uploaded in one
// batch. When the upload fails the ready subset is returned with the error.
func (a *AllDebrid) UploadMagnets(ctx context.Context, magnets []models.Magnet, apiKey string) ([]models.DebridMagnetStatus, error) {
	apiKey = a.validator.SanitizeAPIKey(apiKey)
	if apiKey == "" {
		return nil, apperrors.NewAPIKeyMissingError("AllDebrid")
	}
	fingerprint := a.keys.Register(apiKey)
	a.cleanupAccountAsync(apiKey, fingerprint)

	all := make([]string, len(magnets))
	for i, m := range magnets {
		all[i] = m.Hash
	}
	known, _ := a.CheckAvailability(all, apiKey)

	var (
		statuses []models.DebridMagnetStatus
		pending  []models.Magnet
	)
	for _, m := range magnets {
		if st, ok := known[strings.ToLower(m.Hash)]; ok && st.Ready && st.DebridID != 0 {
			st.Source, st.Sources = m.Source, m.Sources
			statuses = append(statuses, st)
			continue
		}
		pending = append(pending, m)
	}
	a.logger.Infof("[AllDebrid] %d magnets ready from cache, %d to upload", len(statuses), len(pending))
	if len(pending) == 0 {
		return statuses, nil
	}

	hashes := make([]string, len(pending))
	byHash := make(map[string]models.Magnet, len(pending))
	for i, m := range pending {
		hashes[i] = m.Hash
		byHash[strings.ToLower(m.Hash)] = m
	}

	var uploaded []alldebrid.UploadedMagnet
	err := a.call(ctx, "upload", func(ctx context.Context) error {
		var err error
		uploaded, err = a.client.UploadMagnets(ctx, apiKey, hashes)
		return err
	})
	if err != nil {
		a.logger.Errorf("[AllDebrid] upload of %d magnets failed: %v", len(pending), err)
		return statuses, apperrors.NewMagnetProcessError("upload failed", err)
	}

	batch := make(map[string]models.DebridMagnetStatus, len(uploaded))
	for _, u := range uploaded {
		if u.Error != nil {
			a.logger.Warnf("[AllDebrid] magnet %s rejected: %v", u.Magnet, u.Error)
			continue
		}
		hash := strings.ToLower(firstNonEmpty(u.Hash, u.Magnet))
		m, ok := byHash[hash]
		if !ok {
			m, ok = byHash[strings.ToLower(u.Magnet)]
		}
		if !ok {
			continue
		}

		st := models.DebridMagnetStatus{
			Hash:     strings.ToLower(m.Hash),
			DebridID: u.ID,
			Name:     firstNonEmpty(u.Name, m.Title),
			Size:     u.Size,
			Ready:    u.Ready,
			Source:   m.Source,
			Sources:  m.Sources,
		}
		batch[st.Hash] = st
		statuses = append(statuses, st)
		a.remember(st, fingerprint)
	}
	a.cache.Set(cache.InstantKey(fingerprint, hashes), batch)
	return statuses, nil
}

// remember caches an upload result and records it in the ledger.
func (a *AllDebrid) remember(st models.DebridMagnetStatus, fingerprint string) {
	a.cache.Set(cache.MagnetKey(fingerprint, st.Hash), st)
	if st.Ready {
		a.cache.Set(cache.ReadyKey(st.Hash), true)
	}

	if a.db == nil || st.DebridID == 0 {
		return
	}
	err := a.db.StoreMagnet(&database.Magnet{
		ID:             database.MagnetID(fingerprint, st.Hash),
		Hash:           st.Hash,
		Name:           st.Name,
		Source:         st.Source,
		DebridID:       st.DebridID,
		KeyFingerprint: fingerprint,
	})
	if err != nil {
		a.logger.Warnf("[AllDebrid] failed to record magnet %s: %v", st.Hash, err)
	}
}

// GetFiles lists the playable files of a ready magnet.
func (a *AllDebrid) GetFiles(ctx context.Context, debridID int64, source, apiKey string) ([]models.VideoFile, error) {
	apiKey = a.validator.SanitizeAPIKey(apiKey)
	key := cache.FilesKey(a.validator.Fingerprint(apiKey), strconv.FormatInt(debridID, 10))
	if files, ok := cache.Lookup[[]models.VideoFile](a.cache, key); ok {
		return withSource(files, source), nil
	}

	var nodes []alldebrid.FileNode
	err := a.call(ctx, "files", func(ctx context.Context) error {
		var err error
		nodes, err = a.client.MagnetFiles(ctx, apiKey, debridID)
		return err
	})
	if err != nil {
		return nil, apperrors.NewMagnetProcessError(fmt.Sprintf("files of magnet %d", debridID), err)
	}

	flat := alldebrid.VideoFiles(nodes)
	files := make([]models.VideoFile, 0, len(flat))
	for _, f := range flat {
		files = append(files, models.VideoFile{Name: f.Name, Size: f.Size, Link: f.Link})
	}
	a.cache.Set(key, files)
	a.logger.Debugf("[AllDebrid] magnet %d has %d video files", debridID, len(files))
	return withSource(files, source), nil
}

func withSource(files []models.VideoFile, source string) []models.VideoFile {
	out := make([]models.VideoFile, len(files))
	for i, f := range files {
		f.Source = source
		out[i] = f
	}
	return out
}

// UnlockLink converts a hoster link into a direct URL.
func (a *AllDebrid) UnlockLink(ctx context.Context, link, apiKey string) (string, error) {
	key := cache.LinkKey(link)
	if direct, ok := cache.Lookup[string](a.cache, key); ok && direct != "" {
		return direct, nil
	}

	apiKey = a.validator.SanitizeAPIKey(apiKey)
	var unlocked *alldebrid.UnlockedLink
	err := a.call(ctx, "unlock", func(ctx context.Context) error {
		var err error
		unlocked, err = a.client.UnlockLink(ctx, apiKey, link)
		return err
	})
	if err != nil {
		return "", apperrors.NewUnlockError("unlock failed", err)
	}

	a.cache.Set(key, unlocked.Link)
	return unlocked.Link, nil
}

// DeleteMagnets removes magnets from the account.
func (a *AllDebrid) DeleteMagnets(ctx context.Context, ids []int64, apiKey string) error {
	if len(ids) == 0 {
		return nil
	}
	apiKey = a.validator.SanitizeAPIKey(apiKey)
	return a.call(ctx, "delete", func(ctx context.Context) error {
		return a.client.DeleteMagnets(ctx, apiKey, ids)
	})
}

// cleanupAccountAsync trims the account in the background when it holds too
// many magnets. At most one cleanup per key runs at a time.
func (a *AllDebrid) cleanupAccountAsync(apiKey, fingerprint string) {
	if _, busy := a.cleaning.LoadOrStore(fingerprint, struct{}{}); busy {
		return
	}

	a.background.Add(1)
	go func() {
		defer a.background.Done()
		defer a.cleaning.Delete(fingerprint)

		ctx, cancel := context.WithTimeout(context.Background(), accountCleanupTimeout)
		defer cancel()
		if err := a.cleanupAccount(ctx, apiKey, fingerprint); err != nil {
			a.logger.Warnf("[AllDebrid] account cleanup for %s failed: %v", a.validator.MaskAPIKey(apiKey), err)
		}
	}()
}

func (a *AllDebrid) cleanupAccount(ctx context.Context, apiKey, fingerprint string) error {
	var magnets []alldebrid.MagnetStatus
	err := a.call(ctx, "status", func(ctx context.Context) error {
		var err error
		magnets, err = a.client.MagnetStatus(ctx, apiKey)
		return err
	})
	if err != nil {
		return err
	}
	if len(magnets) <= constants.MaxRemoteMagnets {
		return nil
	}

	sort.SliceStable(magnets, func(i, j int) bool {
		return magnets[i].UploadDate < magnets[j].UploadDate
	})
	oldest := magnets[:constants.MagnetsToDelete]
	ids := make([]int64, len(oldest))
	for i, m := range oldest {
		ids[i] = m.ID
	}

	if err := a.DeleteMagnets(ctx, ids, apiKey); err != nil {
		return err
	}
	a.logger.Infof("[AllDebrid] account held %d magnets, deleted the %d oldest", len(magnets), len(ids))

	deleted := make([]DeletedMagnet, 0, len(oldest))
	for _, m := range oldest {
		deleted = append(deleted, DeletedMagnet{Hash: m.Hash, DebridID: m.ID})
		hash := strings.ToLower(m.Hash)
		if hash == "" || a.db == nil {
			continue
		}
		if err := a.db.DeleteMagnet(database.MagnetID(fingerprint, hash)); err != nil {
			a.logger.Debugf("[AllDebrid] ledger delete of %s: %v", hash, err)
		}
	}
	a.Forget(fingerprint, deleted)
	return nil
}

// DeletedMagnet identifies a magnet removed from an account.
type DeletedMagnet struct {
	Hash     string
	DebridID int64
}

// Forget drops the cached account state of magnets deleted from the account
// behind fingerprint, so the next request uploads them again. Instant results
// are batched over many hashes and are dropped wholesale.
func (a *AllDebrid) Forget(fingerprint string, magnets []DeletedMagnet) {
	if len(magnets) == 0 {
		return
	}
	for _, m := range magnets {
		if m.Hash != "" {
			a.cache.Delete(cache.MagnetKey(fingerprint, m.Hash))
		}
		if m.DebridID != 0 {
			a.cache.Delete(cache.FilesKey(fingerprint, strconv.FormatInt(m.DebridID, 10)))
		}
	}
	if store := a.cache.Store(cache.CategoryInstant); store != nil {
		store.Clear()
	}
}

// call runs fn behind the rate limiter and the circuit breaker.
func (a *AllDebrid) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := a.limiter.Execute(ctx, func(ctx context.Context) error {
		return a.breaker.Execute(ctx, fn)
	})

	var openErr *circuitbreaker.OpenError
	switch {
	case err == nil:
		metrics.DebridCallsTotal.WithLabelValues(op, "success").Inc()
		return nil
	case errors.Is(err, ratelimiter.ErrQueueFull):
		metrics.DebridCallsTotal.WithLabelValues(op, "rejected").Inc()
		return apperrors.NewTransportError(apperrors.KindCapacity, "AllDebrid", err)
	case errors.As(err, &openErr):
		metrics.DebridCallsTotal.WithLabelValues(op, "rejected").Inc()
		return apperrors.NewTransportError(apperrors.KindCircuitOpen, "AllDebrid", err)
	default:
		metrics.DebridCallsTotal.WithLabelValues(op, "error").Inc()
		return err
	}
}

func breakerGauge(s circuitbreaker.State) float64 {
	switch s {
	case circuitbreaker.StateHalfOpen:
		return 1
	case circuitbreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// GatewayStatus is a snapshot of the shared limiter and breaker.
type GatewayStatus struct {
	RateLimiter    ratelimiter.Status    `json:"rate_limiter"`
	CircuitBreaker circuitbreaker.Status `json:"circuit_breaker"`
}

func (a *AllDebrid) Status() GatewayStatus {
	return GatewayStatus{
		RateLimiter:    a.limiter.Status(),
		CircuitBreaker: a.breaker.Status(),
	}
}
