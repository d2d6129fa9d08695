// Package handlers implements HTTP request handlers for the Stremio addon API.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amaumene/miaou/internal/config"
	"github.com/amaumene/miaou/internal/middleware"
	"github.com/amaumene/miaou/internal/models"
	"github.com/amaumene/miaou/pkg/logger"
)

// StreamResolver is the pipeline behind the stream and unlock routes.
type StreamResolver interface {
	ResolveStreams(ctx context.Context, q models.MediaQuery, cfg *config.Config, baseURL string) ([]models.Stream, error)
	UnlockToken(ctx context.Context, token string, cfg *config.Config) (string, error)
}

// StatusProvider reports the state of shared resources for /status.
type StatusProvider interface {
	Status() interface{}
}

// StatusFunc adapts a function to StatusProvider.
type StatusFunc func() interface{}

func (f StatusFunc) Status() interface{} {
	return f()
}

// Handler handles HTTP requests for the Stremio addon.
type Handler struct {
	resolver StreamResolver
	status   StatusProvider
	config   *config.Config
	logger   logger.Logger
}

// New creates a new Handler with the provided services and configuration.
// status may be nil.
func New(resolver StreamResolver, status StatusProvider, cfg *config.Config, log logger.Logger) *Handler {
	return &Handler{
		resolver: resolver,
		status:   status,
		config:   cfg,
		logger:   log,
	}
}

// RegisterRoutes registers all HTTP routes for the Stremio addon.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.handleHome)
	r.GET("/health", h.handleHealth)
	r.GET("/status", h.handleStatus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Configuration routes
	r.GET("/configure", h.handleConfig)
	r.GET("/:configuration/configure", h.handleConfigWithParams)

	r.GET("/manifest.json", h.handleManifest)

	// Everything below needs a decoded configuration and the access key
	configured := r.Group("/:"+middleware.ConfigParam,
		middleware.UserConfig(h.config, h.logger),
		middleware.AccessKey(h.config.AccessKey, h.logger),
	)
	configured.GET("/manifest.json", h.handleManifestWithConfig)
	configured.GET("/stream/:type/:id", h.handleStreamWrapper)
	configured.GET("/unlock/:token", h.handleUnlock)
}

func (h *Handler) handleHome(c *gin.Context) {
	c.String(http.StatusOK, "Welcome to Miaou! Visit /configure to configure the addon.")
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) handleStatus(c *gin.Context) {
	if h.status == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, h.status.Status())
}

// Wrapper to handle the .json extension
func (h *Handler) handleStreamWrapper(c *gin.Context) {
	stripJSONExtension(c, "id")
	h.handleStream(c)
}
