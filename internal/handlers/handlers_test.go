package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/miaou/internal/config"
	apperrors "github.com/amaumene/miaou/internal/errors"
	"github.com/amaumene/miaou/internal/models"
	"github.com/amaumene/miaou/pkg/logger"
)

type fakeResolver struct {
	streams   []models.Stream
	streamErr error
	link      string
	unlockErr error

	calls   int
	query   models.MediaQuery
	cfg     *config.Config
	baseURL string
	token   string
}

func (f *fakeResolver) ResolveStreams(_ context.Context, q models.MediaQuery, cfg *config.Config, baseURL string) ([]models.Stream, error) {
	f.calls++
	f.query, f.cfg, f.baseURL = q, cfg, baseURL
	return f.streams, f.streamErr
}

func (f *fakeResolver) UnlockToken(_ context.Context, token string, cfg *config.Config) (string, error) {
	f.calls++
	f.token, f.cfg = token, cfg
	return f.link, f.unlockErr
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, resolver StreamResolver, serverKey string) *gin.Engine {
	t.Helper()
	cfg := &config.Config{AccessKey: serverKey}
	require.NoError(t, cfg.Validate())

	status := StatusFunc(func() interface{} { return gin.H{"ok": true} })
	r := gin.New()
	New(resolver, status, cfg, logger.Nop()).RegisterRoutes(r)
	return r
}

func userSegment(t *testing.T, data map[string]interface{}) string {
	t.Helper()
	base := map[string]interface{}{
		"TMDB_API_KEY":      "0123456789abcdef0123456789abcdef",
		"API_KEY_ALLDEBRID": "alldebridkey123456",
	}
	for k, v := range data {
		base[k] = v
	}
	segment, err := config.EncodeUserConfig(base)
	require.NoError(t, err)
	return segment
}

func get(r *gin.Engine, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStaticRoutes(t *testing.T) {
	r := newTestRouter(t, &fakeResolver{}, "")

	w := get(r, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = get(r, "/status")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = get(r, "/configure")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
}

func TestManifest(t *testing.T) {
	r := newTestRouter(t, &fakeResolver{}, "")

	var m models.Manifest
	w := get(r, "/manifest.json")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.True(t, m.BehaviorHints.ConfigurationRequired)
	assert.Equal(t, []string{"stream"}, m.Resources)
	assert.Equal(t, []string{"tt"}, m.IDPrefixes)

	var withCfg models.Manifest
	w = get(r, "/"+userSegment(t, nil)+"/manifest.json")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &withCfg))
	assert.False(t, withCfg.BehaviorHints.ConfigurationRequired)
	assert.True(t, withCfg.BehaviorHints.Configurable)
}

func TestAccessKey(t *testing.T) {
	tests := []struct {
		name    string
		segment func(t *testing.T) string
		want    int
	}{
		{"malformed configuration", func(*testing.T) string { return "not-a-config" }, http.StatusBadRequest},
		{"missing key", func(t *testing.T) string { return userSegment(t, nil) }, http.StatusUnauthorized},
		{"wrong key", func(t *testing.T) string { return userSegment(t, map[string]interface{}{"ACCESS_KEY": "nope"}) }, http.StatusForbidden},
		{"right key", func(t *testing.T) string { return userSegment(t, map[string]interface{}{"ACCESS_KEY": "s3cret"}) }, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &fakeResolver{streams: []models.Stream{}}
			r := newTestRouter(t, resolver, "s3cret")

			w := get(r, "/"+tt.segment(t)+"/stream/movie/tt0111161.json")
			assert.Equal(t, tt.want, w.Code)
			if tt.want != http.StatusOK {
				assert.Zero(t, resolver.calls)
			}
		})
	}
}

func TestAccessKeyDisabledWithoutServerKey(t *testing.T) {
	resolver := &fakeResolver{streams: []models.Stream{}}
	r := newTestRouter(t, resolver, "")

	w := get(r, "/"+userSegment(t, nil)+"/stream/movie/tt0111161.json")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, resolver.calls)
}

func TestStreamParsesRequest(t *testing.T) {
	tests := []struct {
		name string
		path string
		want models.MediaQuery
	}{
		{"movie", "/stream/movie/tt0111161.json", models.MediaQuery{CatalogID: "tt0111161", Kind: models.KindMovie}},
		{"episode", "/stream/series/tt0944947:1:2.json", models.MediaQuery{CatalogID: "tt0944947", Kind: models.KindSeries, Season: 1, Episode: 2}},
		{"without extension", "/stream/series/tt0944947:3:10", models.MediaQuery{CatalogID: "tt0944947", Kind: models.KindSeries, Season: 3, Episode: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &fakeResolver{streams: []models.Stream{{Name: "😻 Miaou", URL: "http://x"}}}
			r := newTestRouter(t, resolver, "")
			segment := userSegment(t, map[string]interface{}{"FILES_TO_SHOW": 3})

			w := get(r, "/"+segment+tt.path)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, resolver.query)
			assert.Equal(t, "http://example.com/"+segment, resolver.baseURL)
			assert.Equal(t, 3, resolver.cfg.FilesToShow)

			var resp models.StreamResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Len(t, resp.Streams, 1)
		})
	}
}

func TestStreamBaseURLHonoursForwardedProto(t *testing.T) {
	resolver := &fakeResolver{streams: []models.Stream{}}
	r := newTestRouter(t, resolver, "")
	segment := userSegment(t, nil)

	w := get(r, "/"+segment+"/stream/movie/tt1.json", "X-Forwarded-Proto", "https")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://example.com/"+segment, resolver.baseURL)
}

func TestStreamRejectsInvalidRequests(t *testing.T) {
	paths := []string{
		"/stream/movie/abc.json",
		"/stream/series/tt0944947.json",
		"/stream/series/tt0944947:0:2.json",
		"/stream/anime/tt1.json",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			resolver := &fakeResolver{}
			r := newTestRouter(t, resolver, "")

			w := get(r, "/"+userSegment(t, nil)+path)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Zero(t, resolver.calls)
		})
	}
}

func TestStreamErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		body string
	}{
		{"pipeline failure", errors.New("boom"), http.StatusOK, `{"streams":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, &fakeResolver{streamErr: tt.err}, "")
			w := get(r, "/"+userSegment(t, nil)+"/stream/movie/tt1.json")
			assert.Equal(t, tt.want, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}

	for _, err := range []error{apperrors.NewInvalidIDError("x"), apperrors.NewAPIKeyMissingError("TMDB_API_KEY")} {
		r := newTestRouter(t, &fakeResolver{streamErr: err}, "")
		w := get(r, "/"+userSegment(t, nil)+"/stream/movie/tt1.json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestUnlock(t *testing.T) {
	tests := []struct {
		name     string
		resolver *fakeResolver
		want     int
		body     string
	}{
		{"redirects", &fakeResolver{link: "https://direct/file.mkv"}, http.StatusFound, ""},
		{"bad token", &fakeResolver{unlockErr: apperrors.NewInvalidTokenError(nil)}, http.StatusBadRequest, `{"error":"Invalid request data"}`},
		{"unlock failure", &fakeResolver{unlockErr: apperrors.NewUnlockError("unlock failed", errors.New("down"))}, http.StatusInternalServerError, `{"error":"Failed to unlock file"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, tt.resolver, "")
			w := get(r, "/"+userSegment(t, nil)+"/unlock/sometoken")

			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, "sometoken", tt.resolver.token)
			if tt.want == http.StatusFound {
				assert.Equal(t, "https://direct/file.mkv", w.Header().Get("Location"))
				return
			}
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestParseStreamID(t *testing.T) {
	q, ok := parseStreamID("tt123", models.KindMovie)
	assert.True(t, ok)
	assert.Equal(t, "tt123", q.CatalogID)

	_, ok = parseStreamID("tt123:1", models.KindSeries)
	assert.False(t, ok)

	q, ok = parseStreamID("tt123:2:5", models.KindMovie)
	assert.True(t, ok)
	assert.Equal(t, models.KindSeries, q.Kind)
}
