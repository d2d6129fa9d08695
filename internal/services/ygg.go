package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/amaumene/miaou/internal/cache"
	"github.com/amaumene/miaou/internal/constants"
	apperrors "github.com/amaumene/miaou/internal/errors"
	"github.com/amaumene/miaou/internal/models"
	"github.com/amaumene/miaou/pkg/httputil"
	"github.com/amaumene/miaou/pkg/logger"
)

const yggBaseURL = "https://yggapi.eu"

var (
	yggMovieCategories  = []int{2178, 2181, 2183}
	yggSeriesCategories = []int{2179, 2181, 2182, 2184}
)

// TMDBIDLookup cross-references a catalog id with its TMDB id.
type TMDBIDLookup interface {
	LookupTMDBID(ctx context.Context, catalogID string, kind models.MediaKind, apiKey string) (int, error)
}

// YGG searches the YggTorrent API. Its hits carry no info hash; hashes are
// fetched on demand through LookupHash.
type YGG struct {
	*BaseTorrentService
	tmdb TMDBIDLookup
}

type yggTorrent struct {
	ID         flexString `json:"id"`
	Title      string     `json:"title"`
	Size       flexInt    `json:"size"`
	Seeders    flexInt    `json:"seeders"`
	UploadedAt string     `json:"uploaded_at"`
	CreatedAt  string     `json:"created_at"`
}

func NewYGG(c *cache.Manager, transport *httputil.Transport, tmdb TMDBIDLookup, log logger.Logger) *YGG {
	return &YGG{
		BaseTorrentService: NewBaseTorrentService(constants.ProviderYGG, yggBaseURL, transport, c, constants.YGGRateLimit, constants.YGGRateBurst, log),
		tmdb:               tmdb,
	}
}

// Search tries the TMDB id query first, then a text query on the title and
// finally on the alternate title.
func (y *YGG) Search(ctx context.Context, req SearchRequest) models.SearchResults {
	hits, err := y.search(ctx, req)
	if err != nil {
		y.recordFailure(err)
		return models.SearchResults{}
	}
	if len(hits) == 0 {
		y.logger.Warnf("[YGG] no torrents found for %q", req.Metadata.Title)
		return models.SearchResults{}
	}
	return y.process(req, hits)
}

func (y *YGG) search(ctx context.Context, req SearchRequest) ([]rawTorrent, error) {
	if y.tmdb != nil && req.Query.CatalogID != "" {
		tmdbID, err := y.tmdb.LookupTMDBID(ctx, req.Query.CatalogID, req.Query.Kind, req.TMDBAPIKey)
		if err != nil {
			y.logger.Debugf("[YGG] no TMDB id for %s: %v", req.Query.CatalogID, err)
		} else {
			hits, err := y.searchByTMDBID(ctx, tmdbID, req.Query.Kind)
			if err != nil {
				y.logger.Warnf("[YGG] TMDB id search failed, falling back to text search: %v", err)
			} else if len(hits) > 0 {
				y.logger.Infof("[YGG] %d torrents found with TMDB id %d", len(hits), tmdbID)
				return hits, nil
			}
		}
	}

	hits, err := y.searchByText(ctx, req.searchTitle(req.Metadata.Title), req.Query.Kind)
	if err != nil {
		return nil, err
	}

	alt := req.Metadata.AlternateTitle
	if len(hits) == 0 && alt != "" && !strings.EqualFold(alt, req.Metadata.Title) {
		y.logger.Infof("[YGG] no results for %q, trying %q", req.Metadata.Title, alt)
		return y.searchByText(ctx, req.searchTitle(alt), req.Query.Kind)
	}
	return hits, nil
}

func (y *YGG) searchByTMDBID(ctx context.Context, tmdbID int, kind models.MediaKind) ([]rawTorrent, error) {
	q := url.Values{}
	q.Set("page", "1")
	q.Set("order_by", "downloads")
	q.Set("per_page", "50")
	q.Set("type", yggType(kind))
	q.Set("tmdb_id", strconv.Itoa(tmdbID))

	var items []yggTorrent
	if err := y.getJSON(ctx, y.baseURL+"/torrents?"+q.Encode(), constants.YGGIDSearchTimeout, 2, &items); err != nil {
		return nil, err
	}
	return yggHits(items), nil
}

func (y *YGG) searchByText(ctx context.Context, query string, kind models.MediaKind) ([]rawTorrent, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("page", "1")
	q.Set("per_page", "25")
	q.Set("order_by", "downloads")
	categories := yggSeriesCategories
	if kind == models.KindMovie {
		categories = yggMovieCategories
	}
	for _, id := range categories {
		q.Add("category_id", strconv.Itoa(id))
	}

	y.logger.Debugf("[YGG] text search %q", query)
	var items []yggTorrent
	if err := y.getJSON(ctx, y.baseURL+"/torrents?"+q.Encode(), constants.YGGSearchTimeout, 3, &items); err != nil {
		return nil, err
	}
	y.logger.Infof("[YGG] %d torrents found for %q", len(items), query)
	return yggHits(items), nil
}

// LookupHash returns the info hash of a YGG torrent id.
func (y *YGG) LookupHash(ctx context.Context, torrentID string) (string, error) {
	key := cache.YGGHashKey(torrentID)
	if hash, ok := cache.Lookup[string](y.cache, key); ok && hash != "" {
		return hash, nil
	}

	var resp struct {
		Hash string `json:"hash"`
	}
	if err := y.getJSON(ctx, y.baseURL+"/torrent/"+url.PathEscape(torrentID), constants.YGGHashTimeout, 2, &resp); err != nil {
		return "", fmt.Errorf("failed to fetch hash of torrent %s: %w", torrentID, err)
	}
	if resp.Hash == "" {
		return "", fmt.Errorf("torrent %s: %w", torrentID, apperrors.ErrNotFound)
	}

	hash := strings.ToLower(resp.Hash)
	y.cache.Set(key, hash)
	return hash, nil
}

func yggType(kind models.MediaKind) string {
	if kind == models.KindMovie {
		return "movie"
	}
	return "tv"
}

func yggHits(items []yggTorrent) []rawTorrent {
	hits := make([]rawTorrent, 0, len(items))
	for _, it := range items {
		if it.Title == "" {
			continue
		}
		uploaded := it.UploadedAt
		if uploaded == "" {
			uploaded = it.CreatedAt
		}
		hits = append(hits, rawTorrent{candidate: models.TorrentCandidate{
			ExternalID: string(it.ID),
			Title:      it.Title,
			Size:       int64(it.Size),
			Seeders:    int(it.Seeders),
			UploadedAt: parseTimestamp(uploaded),
		}})
	}
	return hits
}
