package services

import (
	"context"
	"net/url"
	"strconv"

	"github.com/amaumene/miaou/internal/cache"
	"github.com/amaumene/miaou/internal/constants"
	"github.com/amaumene/miaou/internal/models"
	"github.com/amaumene/miaou/pkg/httputil"
	"github.com/amaumene/miaou/pkg/logger"
)

const sharewoodBaseURL = "https://www.sharewood.tv"

var (
	sharewoodMovieSubcategories  = []int{9, 11}
	sharewoodSeriesSubcategories = []int{10, 12}
)

// Sharewood searches the Sharewood passkey API. Its hits carry the info hash
// and a separate language field.
type Sharewood struct {
	*BaseTorrentService
}

type sharewoodTorrent struct {
	ID          flexString `json:"id"`
	InfoHash    string     `json:"info_hash"`
	Name        string     `json:"name"`
	Size        flexInt    `json:"size"`
	Seeders     flexInt    `json:"seeders"`
	Leechers    flexInt    `json:"leechers"`
	Language    string     `json:"language"`
	Type        string     `json:"type"`
	DownloadURL string     `json:"download_url"`
	CreatedAt   string     `json:"created_at"`
}

func NewSharewood(c *cache.Manager, transport *httputil.Transport, log logger.Logger) *Sharewood {
	return &Sharewood{
		BaseTorrentService: NewBaseTorrentService(constants.ProviderSharewood, sharewoodBaseURL, transport, c, constants.SharewoodRateLimit, constants.SharewoodRateBurst, log),
	}
}

// Search runs one name query. Without a passkey nothing is sent.
func (s *Sharewood) Search(ctx context.Context, req SearchRequest) models.SearchResults {
	if req.SharewoodPasskey == "" {
		s.logger.Debugf("[SW] no passkey configured, skipping search")
		return models.SearchResults{}
	}

	subcategories := sharewoodSeriesSubcategories
	if req.Query.Kind == models.KindMovie {
		subcategories = sharewoodMovieSubcategories
	}

	q := url.Values{}
	q.Set("name", req.searchTitle(req.Metadata.Title))
	q.Set("category", "1")
	for _, id := range subcategories {
		q.Add("subcategory_id", strconv.Itoa(id))
	}
	endpoint := s.baseURL + "/api/" + url.PathEscape(req.SharewoodPasskey) + "/search?" + q.Encode()

	var items []sharewoodTorrent
	if err := s.getJSON(ctx, endpoint, constants.SharewoodTimeout, 3, &items); err != nil {
		s.recordFailure(err)
		return models.SearchResults{}
	}
	s.logger.Infof("[SW] %d torrents found for %q", len(items), req.Metadata.Title)

	hits := make([]rawTorrent, 0, len(items))
	for _, it := range items {
		if it.Name == "" {
			continue
		}
		hits = append(hits, rawTorrent{
			candidate: models.TorrentCandidate{
				ExternalID: string(it.ID),
				Hash:       it.InfoHash,
				Title:      it.Name,
				Size:       int64(it.Size),
				Seeders:    int(it.Seeders),
				UploadedAt: parseTimestamp(it.CreatedAt),
			},
			language: it.Language,
		})
	}
	return s.process(req, hits)
}
