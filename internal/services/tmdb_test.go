package services

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/miaou/internal/cache"
	apperrors "github.com/amaumene/miaou/internal/errors"
	"github.com/amaumene/miaou/internal/models"
	"github.com/amaumene/miaou/pkg/logger"
)

const tmdbKey = "0123456789abcdef0123456789abcdef"

func newTestTMDB(t *testing.T, handler http.HandlerFunc) *TMDB {
	t.Helper()
	srv := newServer(t, handler)
	tmdb := NewTMDB(cache.NewManager(100), fastTransport(), logger.Nop())
	tmdb.SetBaseURL(srv.URL)
	return tmdb
}

func TestTMDBResolveSeries(t *testing.T) {
	var calls int32
	tmdb := newTestTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/3/find/tt0944947", r.URL.Path)
		assert.Equal(t, tmdbKey, r.URL.Query().Get("api_key"))
		assert.Equal(t, "imdb_id", r.URL.Query().Get("external_source"))
		assert.Equal(t, "fr-FR", r.URL.Query().Get("language"))
		fmt.Fprint(w, `{"movie_results":[],"tv_results":[{"id":1399,"name":"Le Trône de fer","original_name":"Game of Thrones","first_air_date":"2011-04-17"}]}`)
	})

	for i := 0; i < 2; i++ {
		meta, err := tmdb.Resolve(context.Background(), "tt0944947", models.KindSeries, tmdbKey)
		require.NoError(t, err)
		assert.Equal(t, "Game of Thrones", meta.Title)
		assert.Equal(t, "Le Trône de fer", meta.AlternateTitle)
		assert.Equal(t, 2011, meta.Year)
		assert.Equal(t, models.KindSeries, meta.Kind)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTMDBResolveFallsBackToOtherKind(t *testing.T) {
	tmdb := newTestTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"movie_results":[{"id":27205,"title":"Inception","original_title":"Inception","release_date":"2010-07-15"}],"tv_results":[]}`)
	})

	meta, err := tmdb.Resolve(context.Background(), "tt1375666", models.KindSeries, tmdbKey)
	require.NoError(t, err)
	assert.Equal(t, "Inception", meta.Title)
	assert.Equal(t, models.KindMovie, meta.Kind)
	assert.Equal(t, 2010, meta.Year)
}

func TestTMDBResolveNotFound(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"empty results", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"movie_results":[],"tv_results":[]}`)
		}},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `not json`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmdb := newTestTMDB(t, tt.handler)
			meta, err := tmdb.Resolve(context.Background(), "tt1", models.KindMovie, tmdbKey)
			require.Error(t, err)
			assert.Nil(t, meta)
			assert.True(t, apperrors.IsNotFound(err))
		})
	}
}

func TestTMDBResolveWithoutKey(t *testing.T) {
	tmdb := newTestTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := tmdb.Resolve(context.Background(), "tt1", models.KindMovie, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestTMDBLookupID(t *testing.T) {
	var calls int32
	tmdb := newTestTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"movie_results":[{"id":27205,"title":"Inception"}],"tv_results":[]}`)
	})

	id, err := tmdb.LookupTMDBID(context.Background(), "tt1375666", models.KindMovie, tmdbKey)
	require.NoError(t, err)
	assert.Equal(t, 27205, id)

	id, err = tmdb.LookupTMDBID(context.Background(), "tt1375666", models.KindMovie, tmdbKey)
	require.NoError(t, err)
	assert.Equal(t, 27205, id)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err = tmdb.LookupTMDBID(context.Background(), "tt1375666", models.KindSeries, tmdbKey)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
