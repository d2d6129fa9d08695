package handlers

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/amaumene/miaou/internal/constants"
	apperrors "github.com/amaumene/miaou/internal/errors"
	"github.com/amaumene/miaou/internal/middleware"
	"github.com/amaumene/miaou/internal/models"
)

var (
	imdbIDRegex  = regexp.MustCompile(`^tt\d+$`)
	episodeRegex = regexp.MustCompile(`^(tt\d+):(\d+):(\d+)$`)
)

func (h *Handler) handleStream(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout)
	defer cancel()

	cfg, ok := middleware.ConfigFrom(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Configuration required"})
		return
	}

	kind, ok := models.ParseMediaKind(c.Param("type"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid type"})
		return
	}

	id := c.Param("id")
	query, ok := parseStreamID(id, kind)
	if !ok {
		err := apperrors.NewInvalidIDError(id)
		h.logger.Warnf("[StreamHandler] %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Message})
		return
	}

	h.logger.Infof("[StreamHandler] stream request for %s (%s)", id, kind)

	streams, err := h.resolver.ResolveStreams(ctx, query, cfg, configuredBaseURL(c))
	if err != nil {
		if apperrors.IsMalformedInput(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Errorf("[StreamHandler] failed to resolve %s: %v", id, err)
		streams = []models.Stream{}
	}
	if ctx.Err() == context.DeadlineExceeded {
		h.logger.Errorf("[StreamHandler] request timeout for ID: %s", id)
	}

	c.JSON(http.StatusOK, models.StreamResponse{Streams: streams})
}

// parseStreamID reads "tt123" or "tt123:1:2". Series ids without season and
// episode are rejected.
func parseStreamID(id string, kind models.MediaKind) (models.MediaQuery, bool) {
	id = strings.TrimSuffix(id, ".json")

	if imdbIDRegex.MatchString(id) {
		if kind == models.KindSeries {
			return models.MediaQuery{}, false
		}
		return models.MediaQuery{CatalogID: id, Kind: kind}, true
	}

	if matches := episodeRegex.FindStringSubmatch(id); len(matches) == 4 {
		season, _ := strconv.Atoi(matches[2])
		episode, _ := strconv.Atoi(matches[3])
		if season <= 0 || episode <= 0 {
			return models.MediaQuery{}, false
		}
		return models.MediaQuery{CatalogID: matches[1], Kind: models.KindSeries, Season: season, Episode: episode}, true
	}

	return models.MediaQuery{}, false
}
