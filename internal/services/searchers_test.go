package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/miaou/internal/cache"
	"github.com/amaumene/miaou/internal/constants"
	apperrors "github.com/amaumene/miaou/internal/errors"
	"github.com/amaumene/miaou/internal/models"
	"github.com/amaumene/miaou/pkg/logger"
)

type fakeTMDBIDs struct {
	id  int
	err error
}

func (f fakeTMDBIDs) LookupTMDBID(context.Context, string, models.MediaKind, string) (int, error) {
	return f.id, f.err
}

func seriesRequest(t *testing.T) SearchRequest {
	cfg := testConfig(t)
	return SearchRequest{
		Query:       seriesQuery(),
		Metadata:    models.ResolvedMetadata{Title: "Game of Thrones", AlternateTitle: "Le Trone de fer", Kind: models.KindSeries},
		Preferences: PreferencesFrom(cfg),
		TMDBAPIKey:  cfg.TMDBAPIKey,
	}
}

func newTestYGG(t *testing.T, ids TMDBIDLookup, handler http.HandlerFunc) *YGG {
	t.Helper()
	srv := newServer(t, handler)
	y := NewYGG(cache.NewManager(100), fastTransport(), ids, logger.Nop())
	y.SetBaseURL(srv.URL)
	return y
}

func TestYGGSearchByTMDBID(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []string
	)
	y := newTestYGG(t, fakeTMDBIDs{id: 1399}, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.RawQuery)
		mu.Unlock()
		assert.Equal(t, "/torrents", r.URL.Path)
		assert.Equal(t, "1399", r.URL.Query().Get("tmdb_id"))
		assert.Equal(t, "tv", r.URL.Query().Get("type"))
		fmt.Fprint(w, `[
			{"id":5,"title":"Game.of.Thrones.S01E02.1080p.MULTI.x265","size":"1073741824","seeders":12,"uploaded_at":"2024-01-02T03:04:05Z"},
			{"id":6,"title":"Game.of.Thrones.S01.1080p.MULTI","size":2147483648,"seeders":"3"},
			{"id":7,"title":"Game.of.Thrones.S02E01.1080p"}
		]`)
	})

	results := y.Search(context.Background(), seriesRequest(t))
	require.Len(t, results.Episodes, 1)
	require.Len(t, results.CompleteSeason, 1)
	assert.Empty(t, results.CompleteSeries)
	assert.Len(t, queries, 1)

	ep := results.Episodes[0]
	assert.Equal(t, "5", ep.ExternalID)
	assert.Empty(t, ep.Hash)
	assert.Equal(t, int64(constants.BytesToGB), ep.Size)
	assert.Equal(t, 12, ep.Seeders)
	assert.Equal(t, constants.ProviderYGG, ep.Source)
	assert.Equal(t, 2024, ep.UploadedAt.Year())
	assert.Equal(t, 3, results.CompleteSeason[0].Seeders)
}

func TestYGGFallsBackToAlternateTitle(t *testing.T) {
	var textQueries []string
	var mu sync.Mutex
	y := newTestYGG(t, fakeTMDBIDs{id: 1399}, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("tmdb_id") != "" {
			fmt.Fprint(w, `[]`)
			return
		}
		mu.Lock()
		textQueries = append(textQueries, q.Get("q"))
		mu.Unlock()
		assert.Equal(t, []string{"2179", "2181", "2182", "2184"}, q["category_id"])
		if q.Get("q") == "Le Trone de fer" {
			fmt.Fprint(w, `[{"id":"9","title":"Le.Trone.de.fer.S01E02.FRENCH.1080p"}]`)
			return
		}
		fmt.Fprint(w, `[]`)
	})

	results := y.Search(context.Background(), seriesRequest(t))
	require.Len(t, results.Episodes, 1)
	assert.Equal(t, "9", results.Episodes[0].ExternalID)
	assert.Equal(t, []string{"Game of Thrones", "Le Trone de fer"}, textQueries)
}

func TestYGGTextSearchWhenTMDBIDUnknown(t *testing.T) {
	var idQueries int32
	y := newTestYGG(t, fakeTMDBIDs{err: apperrors.ErrNotFound}, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("tmdb_id") != "" {
			atomic.AddInt32(&idQueries, 1)
		}
		assert.Equal(t, "Game of Thrones", r.URL.Query().Get("q"))
		fmt.Fprint(w, `[{"id":1,"title":"Game.of.Thrones.S01E02.1080p"}]`)
	})

	results := y.Search(context.Background(), seriesRequest(t))
	assert.Len(t, results.Episodes, 1)
	assert.Equal(t, int32(0), atomic.LoadInt32(&idQueries))
}

func TestYGGFailureIsAbsorbed(t *testing.T) {
	y := newTestYGG(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	results := y.Search(context.Background(), seriesRequest(t))
	assert.True(t, results.Empty())
}

func TestYGGLookupHash(t *testing.T) {
	var calls int32
	y := newTestYGG(t, nil, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch r.URL.Path {
		case "/torrent/5":
			fmt.Fprint(w, `{"hash":"ABCDEF"}`)
		default:
			fmt.Fprint(w, `{}`)
		}
	})

	for i := 0; i < 2; i++ {
		hash, err := y.LookupHash(context.Background(), "5")
		require.NoError(t, err)
		assert.Equal(t, "abcdef", hash)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err := y.LookupHash(context.Background(), "6")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func newTestSharewood(t *testing.T, handler http.HandlerFunc) *Sharewood {
	t.Helper()
	srv := newServer(t, handler)
	s := NewSharewood(cache.NewManager(100), fastTransport(), logger.Nop())
	s.SetBaseURL(srv.URL)
	return s
}

func TestSharewoodWithoutPasskey(t *testing.T) {
	s := newTestSharewood(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	results := s.Search(context.Background(), seriesRequest(t))
	assert.True(t, results.Empty())
}

func TestSharewoodSearch(t *testing.T) {
	s := newTestSharewood(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/passkey123/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Game of Thrones vostfr", q.Get("name"))
		assert.Equal(t, "1", q.Get("category"))
		assert.Equal(t, []string{"10", "12"}, q["subcategory_id"])
		fmt.Fprint(w, `[
			{"id":1,"info_hash":"AAA","name":"Game.of.Thrones.S01E02.1080p.VOSTFR","language":"French","seeders":"8","created_at":"2023-05-06 07:08:09"},
			{"id":2,"info_hash":"BBB","name":"Game.of.Thrones.S01E02.1080p.GERMAN","language":"German"}
		]`)
	})

	req := seriesRequest(t)
	req.SharewoodPasskey = "passkey123"
	req.Keywords = "vostfr"
	req.Preferences.Languages = []string{"french"}

	results := s.Search(context.Background(), req)
	require.Len(t, results.Episodes, 1)
	ep := results.Episodes[0]
	assert.Equal(t, "AAA", ep.Hash)
	assert.Equal(t, constants.ProviderSharewood, ep.Source)
	assert.Equal(t, 8, ep.Seeders)
	assert.Equal(t, 2023, ep.UploadedAt.Year())
}

func TestSearchTitle(t *testing.T) {
	req := SearchRequest{
		Query:    models.MediaQuery{Kind: models.KindMovie},
		Metadata: models.ResolvedMetadata{Year: 2010},
		Keywords: "MULTI",
	}
	assert.Equal(t, "Inception 2010 MULTI", req.searchTitle("Inception"))

	req.Query.Kind = models.KindSeries
	req.Keywords = ""
	assert.Equal(t, "Show", req.searchTitle("Show"))
}
