package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amaumene/miaou/internal/constants"
	apperrors "github.com/amaumene/miaou/internal/errors"
	"github.com/amaumene/miaou/internal/middleware"
)

// handleUnlock resolves a deferred token and redirects the player to the
// direct link.
func (h *Handler) handleUnlock(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout)
	defer cancel()

	cfg, ok := middleware.ConfigFrom(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Configuration required"})
		return
	}

	link, err := h.resolver.UnlockToken(ctx, c.Param("token"), cfg)
	if err != nil {
		if apperrors.IsMalformedInput(err) {
			h.logger.Warnf("[UnlockHandler] rejected request: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
			return
		}
		h.logger.Errorf("[UnlockHandler] unlock failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unlock file"})
		return
	}

	c.Redirect(http.StatusFound, link)
}
