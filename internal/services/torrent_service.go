package services

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/amaumene/miaou/internal/cache"
	"github.com/amaumene/miaou/internal/metrics"
	"github.com/amaumene/miaou/internal/models"
	"github.com/amaumene/miaou/pkg/httputil"
	"github.com/amaumene/miaou/pkg/logger"
)

// Searcher queries one indexer. Failures are absorbed: a searcher that cannot
// answer returns empty results.
type Searcher interface {
	Name() string
	Search(ctx context.Context, req SearchRequest) models.SearchResults
}

// HashLookup is implemented by searchers whose hits may lack an info hash.
type HashLookup interface {
	LookupHash(ctx context.Context, externalID string) (string, error)
}

// SearchRequest is everything a searcher needs for one playback request.
type SearchRequest struct {
	Query       models.MediaQuery
	Metadata    models.ResolvedMetadata
	Preferences Preferences
	// Keywords are appended to text queries for this catalog id.
	Keywords         string
	TMDBAPIKey       string
	SharewoodPasskey string
}

// searchTitle is the text query for title: movies get their year, then the
// custom keywords are appended.
func (r SearchRequest) searchTitle(title string) string {
	q := title
	if r.Query.Kind == models.KindMovie && r.Metadata.Year > 0 {
		q += " " + strconv.Itoa(r.Metadata.Year)
	}
	if r.Keywords != "" {
		q += " " + r.Keywords
	}
	return q
}

// rawTorrent is an indexer hit before filtering and classification.
type rawTorrent struct {
	candidate models.TorrentCandidate
	language  string
}

// BaseTorrentService holds what every indexer client shares: a throttled
// transport, the cache and the logger.
type BaseTorrentService struct {
	name      string
	baseURL   string
	transport *httputil.Transport
	cache     *cache.Manager
	limiter   *rate.Limiter
	logger    logger.Logger
}

func NewBaseTorrentService(name, baseURL string, transport *httputil.Transport, c *cache.Manager, ratePerSecond float64, burst int, log logger.Logger) *BaseTorrentService {
	return &BaseTorrentService{
		name:      name,
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: transport,
		cache:     c,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		logger:    log,
	}
}

func (b *BaseTorrentService) Name() string {
	return b.name
}

// SetBaseURL points the service at another host.
func (b *BaseTorrentService) SetBaseURL(u string) {
	b.baseURL = strings.TrimRight(u, "/")
}

func (b *BaseTorrentService) getJSON(ctx context.Context, rawURL string, timeout time.Duration, retries int, out interface{}) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	return b.transport.DoJSON(ctx, httputil.Request{
		URL:     rawURL,
		Timeout: timeout,
		Retries: retries,
		Source:  b.name,
	}, out)
}

// process filters hits on the allow-lists and sorts the survivors into the
// categories of the request. Unclassified series hits are dropped.
func (b *BaseTorrentService) process(req SearchRequest, hits []rawTorrent) models.SearchResults {
	classifier := NewClassifier(req.Query.Kind, req.Query.Season, req.Query.Episode)

	var results models.SearchResults
	rejected, dropped := 0, 0
	for _, hit := range hits {
		c := hit.candidate
		passes := req.Preferences.Passes(c.Title)
		if hit.language != "" {
			passes = req.Preferences.PassesWithLanguage(c.Title, hit.language)
		}
		if !passes {
			rejected++
			continue
		}

		c.Category = classifier.Classify(c.Title)
		if c.Category == models.CategoryNone {
			dropped++
			continue
		}
		c.Source = b.name
		results.Add(c)
	}

	b.logger.Debugf("[%s] %d hits: %d rejected by filters, %d unclassified", b.name, len(hits), rejected, dropped)
	b.recordResults(results)
	return results
}

func (b *BaseTorrentService) recordResults(r models.SearchResults) {
	counts := map[models.Category]int{
		models.CategoryCompleteSeries: len(r.CompleteSeries),
		models.CategoryCompleteSeason: len(r.CompleteSeason),
		models.CategoryEpisode:        len(r.Episodes),
		models.CategoryMovie:          len(r.Movies),
	}
	for cat, n := range counts {
		if n > 0 {
			metrics.SearcherResultsTotal.WithLabelValues(b.name, cat.String()).Add(float64(n))
		}
	}
}

func (b *BaseTorrentService) recordFailure(err error) {
	metrics.SearcherFailuresTotal.WithLabelValues(b.name).Inc()
	b.logger.Errorf("[%s] search failed: %v", b.name, err)
}

// flexInt decodes a JSON number that some indexers send as a string.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	n, err := json.Number(data).Int64()
	if err != nil {
		fl, ferr := json.Number(data).Float64()
		if ferr != nil {
			return err
		}
		n = int64(fl)
	}
	*f = flexInt(n)
	return nil
}

// flexString decodes a JSON string or number as a string.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(data) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(data)
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0)
	}
	return time.Time{}
}
