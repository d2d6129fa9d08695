// Package services provides dependency injection container for application services.
package services

import (
	"github.com/amaumene/miaou/internal/cache"
	"github.com/amaumene/miaou/internal/config"
	"github.com/amaumene/miaou/internal/database"
	"github.com/amaumene/miaou/pkg/alldebrid"
	"github.com/amaumene/miaou/pkg/httputil"
	"github.com/amaumene/miaou/pkg/logger"
)

// Container holds all application services for dependency injection.
// It is built once at startup and shared by every request.
type Container struct {
	Cache        *cache.Manager
	DB           database.Database
	Logger       logger.Logger
	TMDB         *TMDB
	YGG          *YGG
	Sharewood    *Sharewood
	AllDebrid    *AllDebrid
	Cleanup      *CleanupService
	Orchestrator *Orchestrator
}

// NewContainer wires every service. db may be nil, in which case uploads are
// not recorded and no retention cleanup runs.
func NewContainer(cfg *config.Config, db database.Database, log logger.Logger) *Container {
	cacheManager := cache.NewManager(cfg.CacheSize)
	transport := httputil.NewTransport(httputil.WithLogger(log))

	tmdb := NewTMDB(cacheManager, transport, log)
	ygg := NewYGG(cacheManager, transport, tmdb, log)
	sharewood := NewSharewood(cacheManager, transport, log)

	debrid := NewAllDebrid(alldebrid.NewClient(alldebrid.WithTransport(transport)), cacheManager, log)

	c := &Container{
		Cache:     cacheManager,
		Logger:    log,
		TMDB:      tmdb,
		YGG:       ygg,
		Sharewood: sharewood,
		AllDebrid: debrid,
	}

	if db != nil {
		c.DB = db
		debrid.SetDB(db)
		c.Cleanup = NewCleanupService(db, debrid, debrid.Keys(), log)
		c.Cleanup.SetRetentionPeriod(cfg.RetentionPeriod())
	}

	c.Orchestrator = NewOrchestrator(tmdb, []Searcher{ygg, sharewood}, debrid, cacheManager, log)
	return c
}
