package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/amaumene/miaou/internal/config"
	"github.com/amaumene/miaou/internal/database"
	"github.com/amaumene/miaou/internal/handlers"
	"github.com/amaumene/miaou/internal/metrics"
	"github.com/amaumene/miaou/internal/services"
	"github.com/amaumene/miaou/pkg/logger"
)

const cacheCleanupInterval = 10 * time.Minute

var (
	Logger           logger.Logger
	Config           *config.Config
	DB               database.Database
	handler          *handlers.Handler
	serviceContainer *services.Container
)

func InitializeConfig() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[App] failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	Config = cfg
}

func InitializeLogger() {
	Logger = logger.NewWithOptions(logger.Options{
		Level: Config.LogLevel,
		File:  Config.LogFile,
	})

	switch strings.ToLower(Config.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		Logger.Warnf("[App] unknown log level '%s', defaulting to info", Config.LogLevel)
	}
}

// InitializeDatabase opens the magnet ledger. The service runs without it
// when the file cannot be opened.
func InitializeDatabase() {
	db, err := database.NewBolt(database.DefaultPath(Config.DatabaseDir))
	if err != nil {
		Logger.Warnf("[App] magnet ledger unavailable, retention cleanup disabled: %v", err)
		return
	}
	DB = db
	Logger.Infof("[App] magnet ledger opened in %s", Config.DatabaseDir)
}

func InitializeMetrics() {
	metrics.Register(prometheus.DefaultRegisterer)
}

func InitializeServices(ctx context.Context) {
	serviceContainer = services.NewContainer(Config, DB, Logger)
	serviceContainer.Cache.StartCleanup(ctx, cacheCleanupInterval)

	if serviceContainer.Cleanup != nil {
		if err := serviceContainer.Cleanup.Start(ctx); err != nil {
			Logger.Errorf("[App] failed to start cleanup service: %v", err)
		}
	}

	handler = handlers.New(serviceContainer.Orchestrator, handlers.StatusFunc(status), Config, Logger)

	Logger.Infof("[App] services initialized successfully")
}

func status() interface{} {
	stats := make(map[string]int)
	for cat, n := range serviceContainer.Cache.Stats() {
		stats[string(cat)] = n
	}
	return struct {
		Debrid services.GatewayStatus `json:"debrid"`
		Cache  map[string]int         `json:"cache"`
		Ledger bool                   `json:"ledger"`
		Time   time.Time              `json:"timestamp"`
	}{
		Debrid: serviceContainer.AllDebrid.Status(),
		Cache:  stats,
		Ledger: DB != nil,
		Time:   time.Now(),
	}
}

// Shutdown stops background work and closes the ledger.
func Shutdown() {
	if serviceContainer != nil {
		if serviceContainer.Cleanup != nil {
			serviceContainer.Cleanup.Stop()
		}
		serviceContainer.AllDebrid.Wait()
	}
	if DB != nil {
		if err := DB.Close(); err != nil {
			Logger.Errorf("[App] failed to close magnet ledger: %v", err)
		}
	}
}

