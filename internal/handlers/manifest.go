package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amaumene/miaou/internal/constants"
	"github.com/amaumene/miaou/internal/models"
)

func (h *Handler) handleManifest(c *gin.Context) {
	manifest := h.createManifest()
	manifest.BehaviorHints.ConfigurationRequired = true
	c.JSON(http.StatusOK, manifest)
}

func (h *Handler) handleManifestWithConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.createManifest())
}

func (h *Handler) createManifest() models.Manifest {
	return models.Manifest{
		ID:          constants.AddonID,
		Version:     constants.AddonVersion,
		Name:        constants.AddonName,
		Description: constants.AddonDescription,
		Types:       []string{"movie", "series"},
		Resources:   []string{"stream"},
		Catalogs:    []models.Catalog{},
		BehaviorHints: models.BehaviorHints{
			Configurable: true,
		},
		IDPrefixes: []string{"tt"},
	}
}
