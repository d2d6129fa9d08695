package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/amaumene/miaou/internal/cache"
	"github.com/amaumene/miaou/internal/constants"
	apperrors "github.com/amaumene/miaou/internal/errors"
	"github.com/amaumene/miaou/internal/models"
	"github.com/amaumene/miaou/pkg/httputil"
	"github.com/amaumene/miaou/pkg/logger"
	"github.com/amaumene/miaou/pkg/security"
)

const tmdbBaseURL = "https://api.themoviedb.org"

// TMDB maps catalog ids to canonical titles through the TMDB find endpoint.
type TMDB struct {
	baseURL   string
	transport *httputil.Transport
	cache     *cache.Manager
	group     singleflight.Group
	logger    logger.Logger
	validator *security.APIKeyValidator
}

func NewTMDB(c *cache.Manager, transport *httputil.Transport, log logger.Logger) *TMDB {
	return &TMDB{
		baseURL:   tmdbBaseURL,
		transport: transport,
		cache:     c,
		logger:    log,
		validator: security.NewAPIKeyValidator(),
	}
}

// SetBaseURL points the resolver at another host.
func (t *TMDB) SetBaseURL(u string) {
	t.baseURL = strings.TrimRight(u, "/")
}

// Resolve returns the title tuple of catalogID. Anything that prevents an
// answer, including provider failures, is reported as ErrNotFound.
func (t *TMDB) Resolve(ctx context.Context, catalogID string, kind models.MediaKind, apiKey string) (*models.ResolvedMetadata, error) {
	if meta, ok := cache.Lookup[*models.ResolvedMetadata](t.cache, cache.TMDBKey(catalogID)); ok {
		t.logger.Debugf("[TMDB] cache hit for %s", catalogID)
		return meta, nil
	}

	resp, err := t.find(ctx, catalogID, apiKey)
	if err != nil {
		t.logger.Errorf("[TMDB] failed to resolve %s: %v", catalogID, err)
		return nil, apperrors.NewTMDBError(fmt.Sprintf("lookup failed for %s", catalogID), fmt.Errorf("%w: %w", apperrors.ErrNotFound, err))
	}

	meta := metadataFrom(resp, kind)
	if meta == nil {
		t.logger.Warnf("[TMDB] no result for %s", catalogID)
		return nil, apperrors.NewTMDBError(fmt.Sprintf("no result for %s", catalogID), apperrors.ErrNotFound)
	}

	t.logger.Infof("[TMDB] %s found: %s (%d), alternate title %q", meta.Kind, meta.Title, meta.Year, meta.AlternateTitle)
	t.cache.Set(cache.TMDBKey(catalogID), meta)
	return meta, nil
}

// LookupTMDBID returns the numeric TMDB id of catalogID for the given kind.
func (t *TMDB) LookupTMDBID(ctx context.Context, catalogID string, kind models.MediaKind, apiKey string) (int, error) {
	key := cache.TMDBIDKey(catalogID).With(string(kind))
	if id, ok := cache.Lookup[int](t.cache, key); ok {
		return id, nil
	}

	resp, err := t.find(ctx, catalogID, apiKey)
	if err != nil {
		return 0, apperrors.NewTMDBError(fmt.Sprintf("id lookup failed for %s", catalogID), fmt.Errorf("%w: %w", apperrors.ErrNotFound, err))
	}

	id := 0
	switch {
	case kind == models.KindMovie && len(resp.MovieResults) > 0:
		id = resp.MovieResults[0].ID
	case kind == models.KindSeries && len(resp.TVResults) > 0:
		id = resp.TVResults[0].ID
	}
	if id == 0 {
		return 0, apperrors.NewTMDBError(fmt.Sprintf("no %s id for %s", kind, catalogID), apperrors.ErrNotFound)
	}

	t.cache.Set(key, id)
	return id, nil
}

// find collapses concurrent requests for the same id and key into one call.
func (t *TMDB) find(ctx context.Context, catalogID, apiKey string) (*models.TMDBFindResponse, error) {
	apiKey = t.validator.SanitizeAPIKey(apiKey)
	if apiKey == "" {
		return nil, apperrors.NewAPIKeyMissingError("TMDB")
	}

	v, err, shared := t.group.Do(catalogID+":"+t.validator.Fingerprint(apiKey), func() (interface{}, error) {
		q := url.Values{}
		q.Set("api_key", apiKey)
		q.Set("external_source", "imdb_id")
		q.Set("language", "fr-FR")

		var resp models.TMDBFindResponse
		err := t.transport.DoJSON(ctx, httputil.Request{
			URL:     t.baseURL + "/3/find/" + url.PathEscape(catalogID) + "?" + q.Encode(),
			Timeout: constants.TMDBTimeout,
			Retries: constants.TMDBRetries,
			Source:  "TMDB",
		}, &resp)
		if err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		t.logger.Debugf("[TMDB] shared lookup for %s", catalogID)
	}
	return v.(*models.TMDBFindResponse), nil
}

// metadataFrom picks the result matching kind, falling back to the other
// result list.
func metadataFrom(resp *models.TMDBFindResponse, kind models.MediaKind) *models.ResolvedMetadata {
	movie := func() *models.ResolvedMetadata {
		if len(resp.MovieResults) == 0 {
			return nil
		}
		m := resp.MovieResults[0]
		return &models.ResolvedMetadata{
			Title:          firstNonEmpty(m.OriginalTitle, m.Title),
			AlternateTitle: m.Title,
			Year:           yearOf(m.ReleaseDate),
			Kind:           models.KindMovie,
		}
	}
	tv := func() *models.ResolvedMetadata {
		if len(resp.TVResults) == 0 {
			return nil
		}
		s := resp.TVResults[0]
		return &models.ResolvedMetadata{
			Title:          firstNonEmpty(s.OriginalName, s.Name),
			AlternateTitle: s.Name,
			Year:           yearOf(s.FirstAirDate),
			Kind:           models.KindSeries,
		}
	}

	if kind == models.KindSeries {
		if m := tv(); m != nil {
			return m
		}
		return movie()
	}
	if m := movie(); m != nil {
		return m
	}
	return tv()
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
