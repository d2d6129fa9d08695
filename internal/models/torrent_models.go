// Package models defines data structures for torrent information and processing.
package models

import "time"

// Category is the classification bucket of a search result.
type Category int

const (
	CategoryNone Category = iota
	CategoryEpisode
	CategoryCompleteSeason
	CategoryCompleteSeries
	CategoryMovie
)

func (c Category) String() string {
	switch c {
	case CategoryEpisode:
		return "episode"
	case CategoryCompleteSeason:
		return "completeSeason"
	case CategoryCompleteSeries:
		return "completeSeries"
	case CategoryMovie:
		return "movie"
	}
	return "none"
}

// TorrentCandidate is one indexer hit. Hash may be empty until resolved.
type TorrentCandidate struct {
	ExternalID string    `json:"external_id"`
	Hash       string    `json:"hash,omitempty"`
	Title      string    `json:"title"`
	Size       int64     `json:"size,omitempty"`
	Seeders    int       `json:"seeders,omitempty"`
	UploadedAt time.Time `json:"uploaded_at,omitempty"`
	Source     string    `json:"source"`
	Category   Category  `json:"category"`
}

// SearchResults is the four-way split produced by a searcher.
type SearchResults struct {
	CompleteSeries []TorrentCandidate `json:"complete_series"`
	CompleteSeason []TorrentCandidate `json:"complete_season"`
	Episodes       []TorrentCandidate `json:"episodes"`
	Movies         []TorrentCandidate `json:"movies"`
}

// Add appends c to the bucket named by its category.
func (r *SearchResults) Add(c TorrentCandidate) {
	switch c.Category {
	case CategoryEpisode:
		r.Episodes = append(r.Episodes, c)
	case CategoryCompleteSeason:
		r.CompleteSeason = append(r.CompleteSeason, c)
	case CategoryCompleteSeries:
		r.CompleteSeries = append(r.CompleteSeries, c)
	case CategoryMovie:
		r.Movies = append(r.Movies, c)
	}
}

func (r SearchResults) Len() int {
	return len(r.CompleteSeries) + len(r.CompleteSeason) + len(r.Episodes) + len(r.Movies)
}

func (r SearchResults) Empty() bool {
	return r.Len() == 0
}

// Magnet is the unit submitted to the debrid service. Sources lists every
// indexer that produced the same hash, in first-seen order.
type Magnet struct {
	Hash    string   `json:"hash"`
	Title   string   `json:"title"`
	Source  string   `json:"source"`
	Sources []string `json:"sources"`
}

// HasSource reports whether name already contributed this hash.
func (m Magnet) HasSource(name string) bool {
	for _, s := range m.Sources {
		if s == name {
			return true
		}
	}
	return false
}
