package services

import (
	"regexp"
	"strings"

	"github.com/amaumene/miaou/internal/config"
)

var (
	normalizers = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`\b4k\b`), "2160p"},
		{regexp.MustCompile(`\b(?:x264|avc|h\.264|x\.264)\b`), "h264"},
		{regexp.MustCompile(`\b(?:x265|hevc|h\.265|x\.265)\b`), "h265"},
		{regexp.MustCompile(`\b(?:vof|vf2)\b`), "vff"},
	}

	knownResolution = regexp.MustCompile(`\b\d{3,4}p\b`)
	knownLanguage   = regexp.MustCompile(`\b(?:multi|vff|vfq|vfi|vf|truefrench|french|vostfr|subfrench|english|vo|spanish|german|italian)\b`)
	knownCodec      = regexp.MustCompile(`\b(?:h264|h265|av1|xvid|divx|vp9)\b`)
)

// NormalizeTitle lower-cases a release name and folds the usual aliases
// onto one token per concept.
func NormalizeTitle(title string) string {
	t := strings.ToLower(title)
	for _, n := range normalizers {
		t = n.re.ReplaceAllString(t, n.repl)
	}
	return t
}

// Preferences are the ordered allow-lists of one request.
type Preferences struct {
	Resolutions []string
	Languages   []string
	Codecs      []string
}

func PreferencesFrom(cfg *config.Config) Preferences {
	return Preferences{
		Resolutions: normalizeList(cfg.ResToShow),
		Languages:   normalizeList(cfg.LangToShow),
		Codecs:      normalizeList(cfg.CodecsToShow),
	}
}

// Passes reports whether title satisfies all three allow-lists. A title that
// says nothing about a dimension passes that dimension.
func (p Preferences) Passes(title string) bool {
	t := NormalizeTitle(title)
	return passesDimension(t, p.Resolutions, knownResolution) &&
		passesDimension(t, p.Languages, knownLanguage) &&
		passesDimension(t, p.Codecs, knownCodec)
}

// PassesWithLanguage is Passes for indexers that report the audio language in
// a separate field. The language list matches either the title or that
// field.
func (p Preferences) PassesWithLanguage(title, language string) bool {
	t := NormalizeTitle(title)
	if !passesDimension(t, p.Resolutions, knownResolution) || !passesDimension(t, p.Codecs, knownCodec) {
		return false
	}
	if passesDimension(t, p.Languages, knownLanguage) {
		return true
	}
	return language != "" && containsAny(NormalizeTitle(language), p.Languages)
}

// ResolutionIndex, LanguageIndex and CodecIndex return the position of the
// first preferred token found in title, or the list length when none is.
func (p Preferences) ResolutionIndex(title string) int {
	return preferenceIndex(NormalizeTitle(title), p.Resolutions)
}

func (p Preferences) LanguageIndex(title string) int {
	return preferenceIndex(NormalizeTitle(title), p.Languages)
}

func (p Preferences) CodecIndex(title string) int {
	return preferenceIndex(NormalizeTitle(title), p.Codecs)
}

func passesDimension(normalized string, allowed []string, known *regexp.Regexp) bool {
	if len(allowed) == 0 {
		return true
	}
	if containsAny(normalized, allowed) {
		return true
	}
	return !known.MatchString(normalized)
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if tok != "" && strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

func preferenceIndex(normalized string, list []string) int {
	for i, tok := range list {
		if tok != "" && strings.Contains(normalized, tok) {
			return i
		}
	}
	return len(list)
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = NormalizeTitle(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
