package services

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/cehbz/torrentname"

	"github.com/amaumene/miaou/internal/constants"
	"github.com/amaumene/miaou/internal/models"
)

const streamNamePrefix = "😻 Miaou"

var (
	fileResolutionRegex = regexp.MustCompile(`(?i)(4k|\d{3,4}p)`)
	fileCodecRegex      = regexp.MustCompile(`(?i)(h\.264|h\.265|x\.264|x\.265|h264|h265|x264|x265|av1|hevc)`)
	fileSourceRegex     = regexp.MustCompile(`(?i)(BluRay|WEB-?DL|WEB|HDRip|DVDRip|BRRip)`)

	seasonMarkerRegex  = regexp.MustCompile(`(?i)s\d+`)
	episodeMarkerRegex = regexp.MustCompile(`(?i)s\d+e\d+`)
)

var fileLanguages = []struct {
	re    *regexp.Regexp
	name  string
	emoji string
}{
	{regexp.MustCompile(`(?i)multi`), "MULTI", "🌍"},
	{regexp.MustCompile(`(?i)vostfr`), "VOSTFR", "🇫🇷"},
	{regexp.MustCompile(`(?i)truefrench`), "TRUEFRENCH", "🇫🇷"},
	{regexp.MustCompile(`(?i)french`), "FRENCH", "🇫🇷"},
	{regexp.MustCompile(`(?i)vff`), "VFF", "🇫🇷"},
	{regexp.MustCompile(`(?i)vf2`), "VF2", "🇫🇷"},
	{regexp.MustCompile(`(?i)vfq`), "VFQ", "🇫🇷"},
	{regexp.MustCompile(`(?i)vfi`), "VFI", "🇫🇷"},
	{regexp.MustCompile(`(?i)vof`), "VOF", "🇫🇷"},
	{regexp.MustCompile(`(?i)english`), "ENGLISH", "🇺🇸"},
	{regexp.MustCompile(`(?i)spanish`), "SPANISH", "🇪🇸"},
	{regexp.MustCompile(`(?i)german`), "GERMAN", "🇩🇪"},
	{regexp.MustCompile(`(?i)italian`), "ITALIAN", "🇮🇹"},
}

// ParseFileName extracts resolution, codec, source and language tags. Unknown
// tags are left empty.
func ParseFileName(name string) models.ParsedFileName {
	var p models.ParsedFileName

	if m := fileResolutionRegex.FindString(name); m != "" {
		p.Resolution = m
	}
	if m := fileCodecRegex.FindString(name); m != "" {
		p.Codec = m
	}
	if m := fileSourceRegex.FindString(name); m != "" {
		p.Source = m
	}
	for _, l := range fileLanguages {
		if l.re.MatchString(name) {
			p.Language = l.name
			break
		}
	}
	return p
}

// mergeParsed fills the unknown tags of file from torrent.
func mergeParsed(file, torrent models.ParsedFileName) models.ParsedFileName {
	if file.Resolution == "" {
		file.Resolution = torrent.Resolution
	}
	if file.Codec == "" {
		file.Codec = torrent.Codec
	}
	if file.Language == "" {
		file.Language = torrent.Language
	}
	if file.Source == "" {
		file.Source = torrent.Source
	}
	return file
}

// LanguageEmoji returns the flag shown next to a language tag.
func LanguageEmoji(language string) string {
	for _, l := range fileLanguages {
		if l.name == strings.ToUpper(language) {
			return l.emoji
		}
	}
	return "🌐"
}

// FormatSize prints bytes as GB with two decimals.
func FormatSize(bytes int64) string {
	return fmt.Sprintf("%.2f GB", float64(bytes)/constants.BytesToGB)
}

// MatchesEpisode reports whether a file name carries the given episode in
// one of the usual notations, or parses as that episode.
func MatchesEpisode(fileName string, season, episode int) bool {
	if anyMatch(episodeNotations(season, episode), strings.ToLower(fileName)) {
		return true
	}
	info := torrentname.Parse(fileName)
	return info != nil && info.Season == season && info.Episode == episode
}

// isSeasonPack reports whether a torrent name looks like it holds more than
// one episode.
func isSeasonPack(name string) bool {
	n := strings.ToLower(name)
	for _, w := range []string{"season", "saison", "complete", "integral"} {
		if strings.Contains(n, w) {
			return true
		}
	}
	if seasonMarkerRegex.MatchString(n) && !episodeMarkerRegex.MatchString(n) {
		return true
	}
	info := torrentname.Parse(name)
	return info != nil && info.IsComplete
}

// sourceLabel names the indexers that produced a magnet.
func sourceLabel(st models.DebridMagnetStatus) string {
	if len(st.Sources) > 1 {
		return "YGG + SW"
	}
	if st.Source == constants.ProviderYGG {
		return "YGG"
	}
	return "SW"
}

func qualityBadge(resolution string) string {
	switch strings.ToLower(resolution) {
	case "2160p", "4k":
		return "🏆"
	case "1080p":
		return "⭐"
	case "720p":
		return "✨"
	}
	return "📺"
}

func codecBadge(codec string) string {
	c := strings.ToLower(codec)
	if strings.Contains(c, "265") || strings.Contains(c, "hevc") {
		return "🔥"
	}
	return "🎬"
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

// streamName picks a random display name when some are configured.
func streamName(names []string) string {
	if len(names) == 0 {
		return streamNamePrefix
	}
	return streamNamePrefix + " " + names[rand.IntN(len(names))]
}

// FormatStream builds the descriptor shown in the player for one file.
func FormatStream(meta models.ResolvedMetadata, query models.MediaQuery, st models.DebridMagnetStatus, file models.VideoFile, tags models.ParsedFileName, names []string, url string) models.Stream {
	heading := "🎭 " + meta.Title
	if query.Season > 0 && query.Episode > 0 {
		heading += fmt.Sprintf(" • S%02dE%02d", query.Season, query.Episode)
	}

	lines := []string{
		heading,
		"📁 " + file.Name,
		fmt.Sprintf("🏴 %s %s %s 🎨 %s", sourceLabel(st), LanguageEmoji(tags.Language), orUnknown(tags.Language), orUnknown(tags.Source)),
		fmt.Sprintf("💾 %s %s %s %s %s", FormatSize(file.Size), qualityBadge(tags.Resolution), orUnknown(tags.Resolution), codecBadge(tags.Codec), strings.ToUpper(orUnknown(tags.Codec))),
	}

	return models.Stream{
		Name:  streamName(names),
		Title: strings.Join(lines, "\n"),
		URL:   url,
	}
}
