// Package models defines the data passed between the pipeline stages.
package models

// MediaKind is either a movie or a series.
type MediaKind string

const (
	KindMovie  MediaKind = "movie"
	KindSeries MediaKind = "series"
)

// ParseMediaKind maps the Stremio type segment to a MediaKind.
func ParseMediaKind(s string) (MediaKind, bool) {
	switch s {
	case "movie":
		return KindMovie, true
	case "series", "tv":
		return KindSeries, true
	}
	return "", false
}

// MediaQuery is one playback request. Zero Season or Episode means absent.
type MediaQuery struct {
	CatalogID string
	Kind      MediaKind
	Season    int
	Episode   int
}

// ResolvedMetadata is the canonical title tuple for a catalog id.
type ResolvedMetadata struct {
	Title          string    `json:"title"`
	AlternateTitle string    `json:"alternate_title"`
	Year           int       `json:"year,omitempty"`
	Kind           MediaKind `json:"kind"`
}
