package cache

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/miaou/internal/constants"
	"github.com/amaumene/miaou/internal/metrics"
)

// Category names one independent store.
type Category string

const (
	CategoryTMDB    Category = "tmdb"
	CategorySearch  Category = "search"
	CategoryInstant Category = "instant"
	CategoryMagnet  Category = "magnet"
	CategoryHash    Category = "hash"
	CategoryReady   Category = "ready"
	CategoryFiles   Category = "files"
	CategoryLink    Category = "link"
	CategoryUnlock  Category = "unlock"
)

// TTLs maps every category to its entry lifetime.
var TTLs = map[Category]time.Duration{
	CategoryTMDB:    constants.TMDBCacheTTL,
	CategorySearch:  constants.SearchCacheTTL,
	CategoryInstant: constants.InstantCacheTTL,
	CategoryMagnet:  constants.MagnetCacheTTL,
	CategoryHash:    constants.HashCacheTTL,
	CategoryReady:   constants.ReadyCacheTTL,
	CategoryFiles:   constants.FilesCacheTTL,
	CategoryLink:    constants.LinkCacheTTL,
	CategoryUnlock:  constants.UnlockCacheTTL,
}

// Key is a category tag plus an ordered field tuple. Two keys collide only
// when both the category and every field match.
type Key struct {
	Category Category
	Fields   []string
}

// With returns a copy of k with extra fields appended.
func (k Key) With(fields ...string) Key {
	out := Key{Category: k.Category, Fields: make([]string, 0, len(k.Fields)+len(fields))}
	out.Fields = append(out.Fields, k.Fields...)
	out.Fields = append(out.Fields, fields...)
	return out
}

func (k Key) String() string {
	parts := make([]string, 0, len(k.Fields)+1)
	parts = append(parts, string(k.Category))
	for _, f := range k.Fields {
		parts = append(parts, strings.ReplaceAll(f, ":", "%3A"))
	}
	return strings.Join(parts, ":")
}

func TMDBKey(catalogID string) Key {
	return Key{Category: CategoryTMDB, Fields: []string{catalogID}}
}

func TMDBIDKey(catalogID string) Key {
	return Key{Category: CategoryHash, Fields: []string{"tmdb-id", catalogID}}
}

func YGGHashKey(torrentID string) Key {
	return Key{Category: CategoryHash, Fields: []string{"ygg-hash", torrentID}}
}

func SearchKey(title, kind string, season, episode, year int) Key {
	return Key{Category: CategorySearch, Fields: []string{
		strings.ToLower(title), kind, strconv.Itoa(season), strconv.Itoa(episode), strconv.Itoa(year),
	}}
}

// InstantKey is built over the sorted, lower-cased hash set so the order of
// the request does not matter. Debrid ids belong to one account, so the key
// fingerprint is part of the key.
func InstantKey(fingerprint string, hashes []string) Key {
	sorted := make([]string, len(hashes))
	for i, h := range hashes {
		sorted[i] = strings.ToLower(h)
	}
	sort.Strings(sorted)
	return Key{Category: CategoryInstant, Fields: []string{fingerprint, strings.Join(sorted, ",")}}
}

func MagnetKey(fingerprint, hash string) Key {
	return Key{Category: CategoryMagnet, Fields: []string{fingerprint, strings.ToLower(hash)}}
}

// ReadyKey is shared by every account: a hash cached by the service is ready
// for anyone who uploads it.
func ReadyKey(hash string) Key {
	return Key{Category: CategoryReady, Fields: []string{strings.ToLower(hash)}}
}

func FilesKey(fingerprint, debridID string) Key {
	return Key{Category: CategoryFiles, Fields: []string{fingerprint, debridID}}
}

func LinkKey(link string) Key {
	return Key{Category: CategoryLink, Fields: []string{link}}
}

func UnlockKey(link string) Key {
	return Key{Category: CategoryUnlock, Fields: []string{link}}
}

// Manager owns one LRUCache per category. It is created once per process and
// shared by every request.
type Manager struct {
	stores map[Category]*LRUCache
}

func NewManager(capacity int) *Manager {
	m := &Manager{stores: make(map[Category]*LRUCache, len(TTLs))}
	for cat, ttl := range TTLs {
		m.stores[cat] = New(capacity, ttl)
	}
	return m
}

func (m *Manager) Store(cat Category) *LRUCache {
	return m.stores[cat]
}

func (m *Manager) Get(key Key) (interface{}, bool) {
	store, ok := m.stores[key.Category]
	if !ok {
		return nil, false
	}
	v, found := store.Get(key.String())
	if found {
		metrics.CacheHitsTotal.WithLabelValues(string(key.Category)).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(string(key.Category)).Inc()
	}
	return v, found
}

func (m *Manager) Set(key Key, value interface{}) {
	if store, ok := m.stores[key.Category]; ok {
		store.Set(key.String(), value)
	}
}

func (m *Manager) Delete(key Key) {
	if store, ok := m.stores[key.Category]; ok {
		store.Delete(key.String())
	}
}

// CleanExpired sweeps every store.
func (m *Manager) CleanExpired() int {
	removed := 0
	for _, store := range m.stores {
		removed += store.CleanExpired()
	}
	return removed
}

func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration) {
	for _, store := range m.stores {
		store.StartCleanup(ctx, interval)
	}
}

// Lookup returns the cached value for key when it holds a T.
func Lookup[T any](m *Manager, key Key) (T, bool) {
	var zero T
	v, ok := m.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Stats returns the number of stored entries per category.
func (m *Manager) Stats() map[Category]int {
	stats := make(map[Category]int, len(m.stores))
	for cat, store := range m.stores {
		stats[cat] = store.Len()
	}
	return stats
}
