package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amaumene/miaou/internal/models"
)

func TestClassifySeries(t *testing.T) {
	c := NewClassifier(models.KindSeries, 1, 2)

	tests := []struct {
		title string
		want  models.Category
	}{
		{"Show.S01E02.1080p", models.CategoryEpisode},
		{"Show 1x02 720p", models.CategoryEpisode},
		{"Show.S01.E02.MULTI", models.CategoryEpisode},
		{"Show Season 1 Episode 2", models.CategoryEpisode},
		{"Show.S01.1080p.WEB", models.CategoryCompleteSeason},
		{"Show Saison 1 FRENCH", models.CategoryCompleteSeason},
		{"Show.Complete.Series.1080p", models.CategoryCompleteSeries},
		{"Show.S01-S03.Integrale.1080p", models.CategoryCompleteSeries},
		{"Show.S01E03.1080p", models.CategoryNone},
		{"Show.S01E12.1080p", models.CategoryNone},
		{"Show 11x02 720p", models.CategoryNone},
		{"Show.S02.1080p", models.CategoryNone},
		{"Show.S01E02.Complete", models.CategoryNone},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.title))
		})
	}
}

func TestClassifyMovieIsCatchAll(t *testing.T) {
	c := NewClassifier(models.KindMovie, 0, 0)
	assert.Equal(t, models.CategoryMovie, c.Classify("Film.2020.1080p"))
	assert.Equal(t, models.CategoryMovie, c.Classify("Anything at all"))
}

func TestClassifyWithoutEpisodeSkipsEpisodeRow(t *testing.T) {
	c := NewClassifier(models.KindSeries, 1, 0)
	assert.Equal(t, models.CategoryNone, c.Classify("Show.S01E02.1080p"))
	assert.Equal(t, models.CategoryCompleteSeason, c.Classify("Show.S01.1080p"))
}
