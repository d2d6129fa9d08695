package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amaumene/miaou/internal/config"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Film.4K.HDR", "film.2160p.hdr"},
		{"Film.1080p.x264", "film.1080p.h264"},
		{"Film.HEVC.MULTI", "film.h265.multi"},
		{"Film.VOF.720p", "film.vff.720p"},
		{"Film.AVC", "film.h264"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.in))
		})
	}
}

func TestPreferencesPasses(t *testing.T) {
	prefs := Preferences{
		Resolutions: []string{"1080p"},
		Languages:   []string{"english"},
		Codecs:      []string{"h264"},
	}

	tests := []struct {
		name  string
		title string
		want  bool
	}{
		{"silent dimensions pass", "Show.S01E02.1080p", true},
		{"other resolution rejected", "Show.S01E02.720p", false},
		{"alias codec accepted", "Show.S01E02.1080p.x264", true},
		{"other codec rejected", "Show.S01E02.1080p.x265", false},
		{"other language rejected", "Show.S01E02.1080p.FRENCH", false},
		{"preferred language accepted", "Show.S01E02.1080p.ENGLISH", true},
		{"no tokens at all", "Show.S01E02", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, prefs.Passes(tt.title))
		})
	}
}

func TestPreferencesPassesRejectsKnownResolutionOutsideList(t *testing.T) {
	prefs := Preferences{Resolutions: []string{"720p"}, Languages: []string{"english"}, Codecs: []string{"h264"}}
	assert.False(t, prefs.Passes("Show.S01E02.1080p"))
}

func TestPreferencesPassesEmptyListsAcceptEverything(t *testing.T) {
	var prefs Preferences
	assert.True(t, prefs.Passes("Film.2160p.x265.VOSTFR"))
}

func TestPreferencesPassesWithLanguage(t *testing.T) {
	prefs := Preferences{Languages: []string{"french"}}

	assert.False(t, prefs.Passes("Film.1080p.VOSTFR"))
	assert.True(t, prefs.PassesWithLanguage("Film.1080p.VOSTFR", "French"))
	assert.False(t, prefs.PassesWithLanguage("Film.1080p.VOSTFR", "German"))
	assert.False(t, prefs.PassesWithLanguage("Film.1080p.VOSTFR", ""))
}

func TestPreferenceIndexes(t *testing.T) {
	prefs := Preferences{
		Resolutions: []string{"2160p", "1080p"},
		Languages:   []string{"multi", "vff"},
		Codecs:      []string{"h265", "h264"},
	}

	assert.Equal(t, 0, prefs.ResolutionIndex("Film.4K"))
	assert.Equal(t, 1, prefs.ResolutionIndex("Film.1080p"))
	assert.Equal(t, 2, prefs.ResolutionIndex("Film.720p"))
	assert.Equal(t, 1, prefs.LanguageIndex("Film.VOF"))
	assert.Equal(t, 2, prefs.LanguageIndex("Film"))
	assert.Equal(t, 0, prefs.CodecIndex("Film.HEVC"))
	assert.Equal(t, 1, prefs.CodecIndex("Film.x264"))
}

func TestPreferencesFrom(t *testing.T) {
	cfg := &config.Config{
		ResToShow:    []string{" 4K ", "1080p", ""},
		LangToShow:   []string{"MULTI"},
		CodecsToShow: []string{"x265"},
	}

	prefs := PreferencesFrom(cfg)
	assert.Equal(t, []string{"2160p", "1080p"}, prefs.Resolutions)
	assert.Equal(t, []string{"multi"}, prefs.Languages)
	assert.Equal(t, []string{"h265"}, prefs.Codecs)
}
