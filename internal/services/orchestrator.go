package services

import (
	"context"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/amaumene/miaou/internal/cache"
	"github.com/amaumene/miaou/internal/config"
	"github.com/amaumene/miaou/internal/constants"
	apperrors "github.com/amaumene/miaou/internal/errors"
	"github.com/amaumene/miaou/internal/metrics"
	"github.com/amaumene/miaou/internal/models"
	"github.com/amaumene/miaou/pkg/logger"
)

// MetadataResolver maps a catalog id to its canonical titles.
type MetadataResolver interface {
	Resolve(ctx context.Context, catalogID string, kind models.MediaKind, apiKey string) (*models.ResolvedMetadata, error)
}

// DebridGateway is the part of the debrid service a stream request uses.
type DebridGateway interface {
	UploadMagnets(ctx context.Context, magnets []models.Magnet, apiKey string) ([]models.DebridMagnetStatus, error)
	GetFiles(ctx context.Context, debridID int64, source, apiKey string) ([]models.VideoFile, error)
	UnlockLink(ctx context.Context, link, apiKey string) (string, error)
}

// Orchestrator drives one stream request from catalog id to stream list.
type Orchestrator struct {
	metadata  MetadataResolver
	searchers []Searcher
	debrid    DebridGateway
	unlock    *UnlockService
	cache     *cache.Manager
	logger    logger.Logger
	now       func() time.Time
}

func NewOrchestrator(metadata MetadataResolver, searchers []Searcher, debrid DebridGateway, c *cache.Manager, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		metadata:  metadata,
		searchers: searchers,
		debrid:    debrid,
		unlock:    NewUnlockService(debrid, c, log),
		cache:     c,
		logger:    log,
		now:       time.Now,
	}
}

// ResolveStreams returns at most cfg.FilesToShow streams for q. An unknown
// title or an empty search yields an empty list, not an error. baseURL is the
// configured addon root the unlock links are built on.
func (o *Orchestrator) ResolveStreams(ctx context.Context, q models.MediaQuery, cfg *config.Config, baseURL string) ([]models.Stream, error) {
	start := o.now()
	if err := cfg.RequireAPIKeys(); err != nil {
		return nil, err
	}

	meta, err := o.metadata.Resolve(ctx, q.CatalogID, q.Kind, cfg.TMDBAPIKey)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			o.logger.Errorf("[Orchestrator] metadata for %s: %v", q.CatalogID, err)
		}
		return []models.Stream{}, nil
	}

	prefs := PreferencesFrom(cfg)
	results := o.search(ctx, q, *meta, prefs, cfg)
	if results.Empty() {
		o.logger.Warnf("[Orchestrator] no torrents found for %q", meta.Title)
		return []models.Stream{}, nil
	}

	limit := cfg.FilesToShow * constants.CandidateMultiplier
	selected := SelectCandidates(results, q, cfg.SeriesPriority, limit)
	ranked := Rank(selected, prefs, o.now())
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	magnets := Dedup(ctx, ranked, o.hashResolver(), limit, o.logger)
	o.logger.Infof("[Orchestrator] %d unique magnets from %d candidates", len(magnets), len(ranked))
	if len(magnets) == 0 {
		return []models.Stream{}, nil
	}

	statuses, err := o.debrid.UploadMagnets(ctx, magnets, cfg.APIKeyAllDebrid)
	if err != nil {
		o.logger.Warnf("[Orchestrator] upload incomplete, continuing with %d known magnets: %v", len(statuses), err)
	}

	streams := o.collectStreams(ctx, q, *meta, prefs, cfg, statuses, baseURL)
	metrics.StreamsServed.Observe(float64(len(streams)))
	o.logger.Infof("[Orchestrator] %d streams for %s in %v", len(streams), q.CatalogID, o.now().Sub(start))
	return streams, nil
}

// search queries every searcher concurrently and waits for all of them. A
// failing searcher contributes nothing. Non-empty merged results are cached.
func (o *Orchestrator) search(ctx context.Context, q models.MediaQuery, meta models.ResolvedMetadata, prefs Preferences, cfg *config.Config) models.SearchResults {
	keywords := cfg.KeywordsFor(q.CatalogID)
	key := cache.SearchKey(meta.Title, string(q.Kind), q.Season, q.Episode, meta.Year).With(searchVariant(prefs, keywords, cfg.SharewoodPasskey != ""))
	if cached, ok := cache.Lookup[models.SearchResults](o.cache, key); ok {
		o.logger.Infof("[Orchestrator] search cache hit for %q", meta.Title)
		return cached
	}

	req := SearchRequest{
		Query:            q,
		Metadata:         meta,
		Preferences:      prefs,
		Keywords:         keywords,
		TMDBAPIKey:       cfg.TMDBAPIKey,
		SharewoodPasskey: cfg.SharewoodPasskey,
	}

	parts := make([]models.SearchResults, len(o.searchers))
	var g errgroup.Group
	for i, s := range o.searchers {
		g.Go(func() error {
			parts[i] = s.Search(ctx, req)
			o.logger.Debugf("[Orchestrator] %s returned %d torrents", s.Name(), parts[i].Len())
			return nil
		})
	}
	_ = g.Wait()

	merged := Merge(parts...)
	if !merged.Empty() {
		o.cache.Set(key, merged)
	}
	return merged
}

// searchVariant separates cached searches of users with different filters or
// indexer access.
func searchVariant(prefs Preferences, keywords string, sharewood bool) string {
	sw := "no-sw"
	if sharewood {
		sw = "sw"
	}
	return strings.Join([]string{
		strings.Join(prefs.Resolutions, ","),
		strings.Join(prefs.Languages, ","),
		strings.Join(prefs.Codecs, ","),
		keywords,
		sw,
	}, "|")
}

func (o *Orchestrator) hashResolver() HashResolver {
	lookups := make(map[string]HashLookup)
	for _, s := range o.searchers {
		if l, ok := s.(HashLookup); ok {
			lookups[s.Name()] = l
		}
	}
	return HashResolverFunc(func(ctx context.Context, c models.TorrentCandidate) (string, error) {
		l, ok := lookups[c.Source]
		if !ok || c.ExternalID == "" {
			return "", apperrors.ErrNotFound
		}
		return l.LookupHash(ctx, c.ExternalID)
	})
}

// collectStreams walks ready magnets in order and turns matching files into
// streams until enough are found. A season pack contributes one file.
func (o *Orchestrator) collectStreams(ctx context.Context, q models.MediaQuery, meta models.ResolvedMetadata, prefs Preferences, cfg *config.Config, statuses []models.DebridMagnetStatus, baseURL string) []models.Stream {
	streams := []models.Stream{}
	for _, st := range statuses {
		if len(streams) >= cfg.FilesToShow || ctx.Err() != nil {
			break
		}
		if !st.Ready || st.DebridID == 0 {
			continue
		}

		files, err := o.debrid.GetFiles(ctx, st.DebridID, st.Source, cfg.APIKeyAllDebrid)
		if err != nil {
			o.logger.Warnf("[Orchestrator] files of %s: %v", st.Hash, err)
			continue
		}

		torrentTags := ParseFileName(st.Name)
		pack := isSeasonPack(st.Name)
		matched := 0
		for _, f := range files {
			if len(streams) >= cfg.FilesToShow {
				break
			}
			if q.Kind == models.KindSeries && !MatchesEpisode(f.Name, q.Season, q.Episode) {
				continue
			}
			tags := mergeParsed(ParseFileName(f.Name), torrentTags)
			if !filePasses(tags, prefs) {
				o.logger.Debugf("[Orchestrator] file %s filtered out (%s %s %s)", f.Name, tags.Resolution, tags.Language, tags.Codec)
				continue
			}

			token := EncodeToken(models.UnlockToken{
				FileName:      f.Name,
				AllDebridLink: f.Link,
				Source:        firstNonEmpty(st.Source, constants.ProviderUnknown),
				Size:          f.Size,
			})
			streams = append(streams, FormatStream(meta, q, st, f, tags, cfg.Names, strings.TrimRight(baseURL, "/")+"/unlock/"+token))
			o.logger.Debugf("[Orchestrator] stream %s (%s bytes, %s)", f.Name, humanize.Comma(f.Size), sourceLabel(st))
			matched++

			if pack && q.Kind == models.KindSeries {
				break
			}
		}
		if matched == 0 {
			o.logger.Debugf("[Orchestrator] no matching file in %s", st.Name)
		}
	}
	return streams
}

// filePasses checks the merged file tags against the allow-lists. An unknown
// tag passes.
func filePasses(tags models.ParsedFileName, prefs Preferences) bool {
	check := func(value string, allowed []string) bool {
		if value == "" || len(allowed) == 0 {
			return true
		}
		return containsAny(NormalizeTitle(value), allowed)
	}
	return check(tags.Resolution, prefs.Resolutions) &&
		check(tags.Language, prefs.Languages) &&
		check(tags.Codec, prefs.Codecs)
}

// UnlockToken resolves a deferred token with the requesting user's key.
func (o *Orchestrator) UnlockToken(ctx context.Context, token string, cfg *config.Config) (string, error) {
	if cfg.APIKeyAllDebrid == "" {
		return "", apperrors.NewAPIKeyMissingError("AllDebrid")
	}
	return o.unlock.Unlock(ctx, token, cfg.APIKeyAllDebrid)
}
