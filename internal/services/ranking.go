package services

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/amaumene/miaou/internal/config"
	"github.com/amaumene/miaou/internal/constants"
	"github.com/amaumene/miaou/internal/models"
	"github.com/amaumene/miaou/pkg/logger"
)

var qualityTokens = []struct {
	re    *regexp.Regexp
	score float64
}{
	{regexp.MustCompile(`\b(?:remux|untouched)\b`), 10},
	{regexp.MustCompile(`\b(?:bluray|blu-ray|web-dl|webdl)\b`), 8},
	{regexp.MustCompile(`\b(?:webrip|hdtv)\b`), 6},
	{regexp.MustCompile(`\b(?:dvdrip|tvrip)\b`), 3},
}

var penaltyTokens = []struct {
	re    *regexp.Regexp
	score float64
}{
	{regexp.MustCompile(`\b(?:cam|ts|tc)\b`), -20},
	{regexp.MustCompile(`\b(?:screener|dvdscr)\b`), -15},
	{regexp.MustCompile(`\b(?:workprint|r5)\b`), -10},
}

// Merge concatenates every category in argument order.
func Merge(results ...models.SearchResults) models.SearchResults {
	var merged models.SearchResults
	for _, r := range results {
		merged.CompleteSeries = append(merged.CompleteSeries, r.CompleteSeries...)
		merged.CompleteSeason = append(merged.CompleteSeason, r.CompleteSeason...)
		merged.Episodes = append(merged.Episodes, r.Episodes...)
		merged.Movies = append(merged.Movies, r.Movies...)
	}
	return merged
}

// SelectCandidates picks what goes to ranking. Movies are all kept. Series
// categories are taken in the order of the priority policy until limit
// candidates are selected; episodes must carry the exact SxxEyy marker.
func SelectCandidates(results models.SearchResults, query models.MediaQuery, priority config.SeriesPriority, limit int) []models.TorrentCandidate {
	if query.Kind == models.KindMovie {
		return append([]models.TorrentCandidate(nil), results.Movies...)
	}

	episodes := filterExactEpisodes(results.Episodes, query.Season, query.Episode)
	order := [][]models.TorrentCandidate{results.CompleteSeries, results.CompleteSeason, episodes}
	if priority == config.PrioritySpecific {
		order = [][]models.TorrentCandidate{episodes, results.CompleteSeason, results.CompleteSeries}
	}

	selected := make([]models.TorrentCandidate, 0, limit)
	for _, bucket := range order {
		for _, c := range bucket {
			if len(selected) >= limit {
				return selected
			}
			selected = append(selected, c)
		}
	}
	return selected
}

func filterExactEpisodes(episodes []models.TorrentCandidate, season, episode int) []models.TorrentCandidate {
	if season <= 0 || episode <= 0 {
		return nil
	}
	notations := episodeNotations(season, episode)

	var out []models.TorrentCandidate
	for _, c := range episodes {
		if anyMatch(notations, strings.ToLower(c.Title)) {
			out = append(out, c)
		}
	}
	return out
}

// Rank orders candidates by preferred resolution, language and codec, then
// by descending quality score. Ties keep their input order.
func Rank(candidates []models.TorrentCandidate, prefs Preferences, now time.Time) []models.TorrentCandidate {
	type ranked struct {
		c                models.TorrentCandidate
		res, lang, codec int
		score            float64
	}

	items := make([]ranked, len(candidates))
	for i, c := range candidates {
		items[i] = ranked{
			c:     c,
			res:   prefs.ResolutionIndex(c.Title),
			lang:  prefs.LanguageIndex(c.Title),
			codec: prefs.CodecIndex(c.Title),
			score: QualityScore(c, prefs, now),
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.res != b.res {
			return a.res < b.res
		}
		if a.lang != b.lang {
			return a.lang < b.lang
		}
		if a.codec != b.codec {
			return a.codec < b.codec
		}
		return a.score > b.score
	})

	out := make([]models.TorrentCandidate, len(items))
	for i, it := range items {
		out[i] = it.c
	}
	return out
}

// QualityScore rates a candidate on seeders, size, age, release tags and how
// well it matches the preferences. The result is rounded to two decimals.
func QualityScore(c models.TorrentCandidate, prefs Preferences, now time.Time) float64 {
	title := NormalizeTitle(c.Title)
	score := 0.0

	score += math.Min(float64(c.Seeders), 100) * 0.5

	if c.Size > 0 {
		gb := float64(c.Size) / constants.BytesToGB
		if gb >= 0.1 && gb <= 20 {
			score += 20 - math.Abs(gb-5)
		}
	}

	if !c.UploadedAt.IsZero() {
		days := now.Sub(c.UploadedAt).Hours() / 24
		score += math.Max(15-days/30, 0)
	}

	for _, q := range qualityTokens {
		if q.re.MatchString(title) {
			score += q.score
			break
		}
	}
	for _, p := range penaltyTokens {
		if p.re.MatchString(title) {
			score += p.score
			break
		}
	}

	if i := preferenceIndex(title, prefs.Resolutions); i < len(prefs.Resolutions) {
		score += float64(len(prefs.Resolutions)-i) * 2
	}
	if i := preferenceIndex(title, prefs.Languages); i < len(prefs.Languages) {
		score += float64(len(prefs.Languages)-i) * 2
	}
	if i := preferenceIndex(title, prefs.Codecs); i < len(prefs.Codecs) {
		score += float64(len(prefs.Codecs)-i) * 1.5
	}

	return math.Round(score*100) / 100
}

// HashResolver looks up the info hash of a candidate whose indexer did not
// return one.
type HashResolver interface {
	ResolveHash(ctx context.Context, c models.TorrentCandidate) (string, error)
}

// HashResolverFunc adapts a function to HashResolver.
type HashResolverFunc func(ctx context.Context, c models.TorrentCandidate) (string, error)

func (f HashResolverFunc) ResolveHash(ctx context.Context, c models.TorrentCandidate) (string, error) {
	return f(ctx, c)
}

// Dedup turns ranked candidates into at most limit magnets (zero keeps every
// hash), one per hash. Missing hashes are resolved one at a time in rank
// order and candidates whose hash cannot be found are skipped. A hash seen
// again only adds its source.
func Dedup(ctx context.Context, candidates []models.TorrentCandidate, resolver HashResolver, limit int, log logger.Logger) []models.Magnet {
	magnets := make([]models.Magnet, 0, len(candidates))
	index := make(map[string]int, len(candidates))

	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		full := limit > 0 && len(magnets) >= limit
		if full && c.Hash == "" {
			continue
		}

		hash := strings.ToLower(strings.TrimSpace(c.Hash))
		if hash == "" && resolver != nil {
			resolved, err := resolver.ResolveHash(ctx, c)
			if err != nil {
				log.Warnf("[Dedup] skipping %q: %v", c.Title, err)
				continue
			}
			hash = strings.ToLower(strings.TrimSpace(resolved))
		}
		if hash == "" {
			log.Debugf("[Dedup] skipping %q: no hash", c.Title)
			continue
		}

		source := c.Source
		if source == "" {
			source = constants.ProviderUnknown
		}

		if i, ok := index[hash]; ok {
			if !magnets[i].HasSource(source) {
				magnets[i].Sources = append(magnets[i].Sources, source)
				log.Debugf("[Dedup] hash %s shared by %s", hash, strings.Join(magnets[i].Sources, " + "))
			}
			continue
		}
		if full {
			continue
		}

		index[hash] = len(magnets)
		magnets = append(magnets, models.Magnet{
			Hash:    hash,
			Title:   c.Title,
			Source:  source,
			Sources: []string{source},
		})
	}
	return magnets
}
