package models

// DebridMagnetStatus is what the gateway knows about one uploaded hash.
type DebridMagnetStatus struct {
	Hash     string   `json:"hash"`
	DebridID int64    `json:"debrid_id"`
	Name     string   `json:"name"`
	Size     int64    `json:"size"`
	Ready    bool     `json:"ready"`
	Source   string   `json:"source"`
	Sources  []string `json:"sources,omitempty"`
}

// VideoFile is one playable file inside a ready magnet.
type VideoFile struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Link   string `json:"link"`
	Source string `json:"source"`
}

// ParsedFileName holds the tags extracted from a release or file name.
type ParsedFileName struct {
	Resolution string `json:"resolution"`
	Codec      string `json:"codec"`
	Source     string `json:"source"`
	Language   string `json:"language"`
}
