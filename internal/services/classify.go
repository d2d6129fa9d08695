package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/amaumene/miaou/internal/models"
)

// classRule is one row of the classification table. A title matches when any
// include pattern matches and no exclude pattern does. A row without include
// patterns matches everything.
type classRule struct {
	category models.Category
	include  []*regexp.Regexp
	exclude  []*regexp.Regexp
	// excludeOnStripped evaluates exclude patterns on the title with season
	// ranges removed.
	excludeOnStripped bool
}

func (r classRule) matches(title string) bool {
	if len(r.include) > 0 && !anyMatch(r.include, title) {
		return false
	}
	target := title
	if r.excludeOnStripped {
		target = stripSeasonRanges(title)
	}
	return !anyMatch(r.exclude, target)
}

var (
	seasonRangePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bs\d{1,2}[ ._]?-[ ._]?s?\d{1,2}\b`),
		regexp.MustCompile(`\b(?:saisons?|seasons?)[ ._-]*\d{1,2}[ ._]*(?:-|a|à|to)[ ._]*\d{1,2}\b`),
	}

	completeWords = regexp.MustCompile(`\b(?:compl[eè]te|int[eé]grale?|collection)\b`)

	completeSeriesInclude = []*regexp.Regexp{
		regexp.MustCompile(`\bcompl[eè]te?\b`),
		regexp.MustCompile(`\bint[eé]grale?\b`),
		regexp.MustCompile(`\bcollection\b`),
		regexp.MustCompile(`\bs[eé]ries?[ ._-]*compl[eè]tes?\b`),
		regexp.MustCompile(`\btoutes[ ._-]+les[ ._-]+saisons\b`),
		regexp.MustCompile(`\bs0?1[ ._]?-[ ._]?s?\d`),
		regexp.MustCompile(`\b(?:saisons?|seasons?)[ ._-]*0?1[ ._]*(?:-|a|à|to)[ ._]*\d`),
		regexp.MustCompile(`\bmulti[ ._-]?seasons?\b`),
	}

	// any season or episode specific notation
	specificNotation = []*regexp.Regexp{
		regexp.MustCompile(`\bs\d{1,2}(?:[ ._-]?e\d{1,3})?(?:[^a-z0-9]|$)`),
		regexp.MustCompile(`\b\d{1,2}x\d{2}\b`),
		regexp.MustCompile(`\b(?:saison|season)[ ._-]*\d{1,2}\b`),
	}
)

// Classifier assigns each search hit of one request to a single category.
type Classifier struct {
	rules []classRule
}

// NewClassifier builds the ordered table for a request. Movies get a single
// catch-all row; series get episode, complete season and complete series rows
// for whatever of season and episode is known.
func NewClassifier(kind models.MediaKind, season, episode int) *Classifier {
	c := &Classifier{}
	if kind == models.KindMovie {
		c.rules = []classRule{{category: models.CategoryMovie}}
		return c
	}

	if season > 0 && episode > 0 {
		c.rules = append(c.rules, episodeRule(season, episode))
	}
	if season > 0 {
		c.rules = append(c.rules, seasonRule(season))
	}
	c.rules = append(c.rules, classRule{
		category:          models.CategoryCompleteSeries,
		include:           completeSeriesInclude,
		exclude:           specificNotation,
		excludeOnStripped: true,
	})
	return c
}

// Classify returns the category of the first matching row, or CategoryNone.
func (c *Classifier) Classify(title string) models.Category {
	t := strings.ToLower(title)
	for _, rule := range c.rules {
		if rule.matches(t) {
			return rule.category
		}
	}
	return models.CategoryNone
}

func episodeRule(season, episode int) classRule {
	return classRule{
		category: models.CategoryEpisode,
		include:  episodeNotations(season, episode),
		exclude:  []*regexp.Regexp{completeWords},
	}
}

// episodeNotations matches one exact episode in lower-cased text, written as
// s01e02, s01.e02, 1x02 or season 1 episode 2. Neighbours such as s01e12 or
// 11x02 do not match.
func episodeNotations(season, episode int) []*regexp.Regexp {
	const start, end = `(?:^|[^a-z0-9])`, `(?:\D|$)`
	return compileAll([]string{
		fmt.Sprintf(`%ss0*%d[ ._-]?e0*%d%s`, start, season, episode, end),
		fmt.Sprintf(`%s0?%dx%02d%s`, start, season, episode, end),
		fmt.Sprintf(`%s(?:season|saison)[ ._-]*0*%d[ ._-]*(?:episode|épisode)[ ._-]*0*%d%s`, start, season, episode, end),
	})
}

func seasonRule(season int) classRule {
	include := []string{
		fmt.Sprintf(`\bs0*%d(?:[^e0-9a-z]|$)`, season),
		fmt.Sprintf(`\b(?:saison|season)[ ._-]*0*%d(?:\D|$)`, season),
	}
	exclude := []string{
		fmt.Sprintf(`\bs0*%d[ ._-]?e\d`, season),
		fmt.Sprintf(`\b0?%dx\d{2}`, season),
		fmt.Sprintf(`\b(?:season|saison)[ ._-]*0*%d[ ._-]*(?:episode|épisode)`, season),
	}
	rule := classRule{
		category: models.CategoryCompleteSeason,
		include:  compileAll(include),
		exclude:  compileAll(exclude),
	}
	rule.exclude = append(rule.exclude, seasonRangePatterns...)
	return rule
}

func stripSeasonRanges(title string) string {
	for _, re := range seasonRangePatterns {
		title = re.ReplaceAllString(title, " ")
	}
	return title
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

func anyMatch(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
