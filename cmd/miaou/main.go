package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amaumene/miaou/internal/middleware"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	InitializeConfig()
	InitializeLogger()
	InitializeMetrics()
	InitializeDatabase()
	InitializeServices(ctx)
	defer Shutdown()

	if Config.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.Gzip())
	r.Use(middleware.CORS())

	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + Config.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		Logger.Infof("[App] starting HTTP server on port %s", Config.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("[App] HTTP server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	Logger.Infof("[App] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		Logger.Errorf("[App] graceful shutdown failed: %v", err)
	}
}
