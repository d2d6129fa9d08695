// Package constants defines application-wide constants and default values.
package constants

const (
	// Addon metadata
	AddonID          = "miaou.stremio.addon"
	AddonVersion     = "1.2.0"
	AddonName        = "Miaou"
	AddonDescription = "French torrent addon searching YGG and Sharewood, served through AllDebrid"

	// Default configuration values
	DefaultPort     = "5000"
	DefaultLogLevel = "info"

	// Default number of streams returned per request
	DefaultFilesToShow = 2
	// Candidates kept per wanted stream before upload
	CandidateMultiplier = 2

	// Cache settings
	DefaultCacheSize = 1000
)

// DefaultResolutions lists supported resolutions in order of preference.
var DefaultResolutions = []string{
	"2160p",
	"1080p",
	"720p",
	"480p",
}

// DefaultLanguages lists audio tags accepted when the user sets none.
var DefaultLanguages = []string{
	"multi",
	"vff",
	"truefrench",
	"french",
	"vostfr",
}

// DefaultCodecs lists codecs accepted when the user sets none.
var DefaultCodecs = []string{
	"h265",
	"h264",
}
