package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amaumene/miaou/internal/constants"
	"github.com/amaumene/miaou/internal/models"
)

func TestParseFileName(t *testing.T) {
	tests := []struct {
		name string
		want models.ParsedFileName
	}{
		{
			"Show.S01E02.1080p.WEB-DL.x265.MULTI.mkv",
			models.ParsedFileName{Resolution: "1080p", Codec: "x265", Source: "WEB-DL", Language: "MULTI"},
		},
		{
			"Film.2020.4K.BluRay.HEVC.TRUEFRENCH.mkv",
			models.ParsedFileName{Resolution: "4K", Codec: "HEVC", Source: "BluRay", Language: "TRUEFRENCH"},
		},
		{
			"film.mkv",
			models.ParsedFileName{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFileName(tt.name))
		})
	}
}

func TestMergeParsedFillsUnknownTags(t *testing.T) {
	file := models.ParsedFileName{Resolution: "720p"}
	torrent := models.ParsedFileName{Resolution: "1080p", Codec: "x264", Language: "VFF", Source: "WEB"}

	got := mergeParsed(file, torrent)
	assert.Equal(t, models.ParsedFileName{Resolution: "720p", Codec: "x264", Language: "VFF", Source: "WEB"}, got)
}

func TestMatchesEpisode(t *testing.T) {
	tests := []struct {
		file string
		want bool
	}{
		{"Show.S01E02.mkv", true},
		{"show.s1e2.mkv", true},
		{"Show.1x02.mkv", true},
		{"Show.S01.E02.mkv", true},
		{"Show Saison 1 Episode 2.mkv", true},
		{"show_s01e02.mkv", true},
		{"Show.S01E03.mkv", false},
		{"Show.S02E02.mkv", false},
		{"Show.S1E20.mkv", false},
		{"Show.S01E021.mkv", false},
		{"Show.11x02.mkv", false},
		{"Show.1x021.mkv", false},
		{"Show Season 1 Episode 22.mkv", false},
		{"Show Season 11 Episode 2.mkv", false},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesEpisode(tt.file, 1, 2))
		})
	}
}

func TestIsSeasonPack(t *testing.T) {
	assert.True(t, isSeasonPack("Show.S01.1080p"))
	assert.True(t, isSeasonPack("Show Saison 1 FRENCH"))
	assert.True(t, isSeasonPack("Show.Integrale.1080p"))
	assert.False(t, isSeasonPack("Show.S01E02.1080p"))
}

func TestLanguageEmoji(t *testing.T) {
	assert.Equal(t, "🌍", LanguageEmoji("multi"))
	assert.Equal(t, "🇫🇷", LanguageEmoji("VFF"))
	assert.Equal(t, "🇺🇸", LanguageEmoji("ENGLISH"))
	assert.Equal(t, "🌐", LanguageEmoji(""))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "1.50 GB", FormatSize(constants.BytesToGB*3/2))
	assert.Equal(t, "0.00 GB", FormatSize(0))
}

func TestSourceLabel(t *testing.T) {
	assert.Equal(t, "YGG", sourceLabel(models.DebridMagnetStatus{Source: constants.ProviderYGG}))
	assert.Equal(t, "SW", sourceLabel(models.DebridMagnetStatus{Source: constants.ProviderSharewood}))
	assert.Equal(t, "YGG + SW", sourceLabel(models.DebridMagnetStatus{
		Source:  constants.ProviderYGG,
		Sources: []string{constants.ProviderYGG, constants.ProviderSharewood},
	}))
}

func TestFormatStream(t *testing.T) {
	meta := models.ResolvedMetadata{Title: "Show"}
	query := models.MediaQuery{Kind: models.KindSeries, Season: 1, Episode: 2}
	st := models.DebridMagnetStatus{Source: constants.ProviderYGG}
	file := models.VideoFile{Name: "Show.S01E02.mkv", Size: constants.BytesToGB}
	tags := models.ParsedFileName{Resolution: "1080p", Codec: "x265", Language: "MULTI", Source: "WEB"}

	s := FormatStream(meta, query, st, file, tags, nil, "https://addon/cfg/unlock/tok")
	assert.Equal(t, "😻 Miaou", s.Name)
	assert.Equal(t, "https://addon/cfg/unlock/tok", s.URL)

	lines := strings.Split(s.Title, "\n")
	assert.Equal(t, []string{
		"🎭 Show • S01E02",
		"📁 Show.S01E02.mkv",
		"🏴 YGG 🌍 MULTI 🎨 WEB",
		"💾 1.00 GB ⭐ 1080p 🔥 X265",
	}, lines)

	named := FormatStream(meta, models.MediaQuery{Kind: models.KindMovie}, st, file, models.ParsedFileName{}, []string{"Chat"}, "u")
	assert.Equal(t, "😻 Miaou Chat", named.Name)
	assert.True(t, strings.HasPrefix(named.Title, "🎭 Show\n"))
	assert.Contains(t, named.Title, "📺 ? 🎬 ?")
}
