package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/amaumene/miaou/internal/errors"
)

func fastTransport() *Transport {
	return NewTransport(WithBackoff(time.Millisecond, 5*time.Millisecond, 0))
}

func TestBackoffDelay(t *testing.T) {
	noJitter := func(int64) int64 { return 0 }
	fullJitter := func(n int64) int64 { return n - 1 }

	assert.Equal(t, time.Second, BackoffDelay(0, time.Second, 15*time.Second, time.Second, noJitter))
	assert.Equal(t, 2*time.Second, BackoffDelay(1, time.Second, 15*time.Second, time.Second, noJitter))
	assert.Equal(t, 8*time.Second, BackoffDelay(3, time.Second, 15*time.Second, time.Second, noJitter))
	assert.Equal(t, 15*time.Second, BackoffDelay(4, time.Second, 15*time.Second, time.Second, noJitter))
	assert.Equal(t, 15*time.Second, BackoffDelay(40, time.Second, 15*time.Second, time.Second, noJitter))

	withJitter := BackoffDelay(1, time.Second, 15*time.Second, time.Second, fullJitter)
	assert.Greater(t, withJitter, 2*time.Second)
	assert.Less(t, withJitter, 3*time.Second)
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := fastTransport().DoJSON(context.Background(), Request{URL: srv.URL, Source: "test"}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fastTransport().Do(context.Background(), Request{URL: srv.URL, Source: "test"})
	require.Error(t, err)

	var te *apperrors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, apperrors.KindClient, te.Kind)
	assert.Equal(t, http.StatusNotFound, te.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoRetriesTooManyRequests(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := fastTransport().Do(context.Background(), Request{URL: srv.URL, Retries: 2})
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDoTimesOutPerAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	_, err := fastTransport().Do(context.Background(), Request{
		URL:     srv.URL,
		Timeout: 20 * time.Millisecond,
		Retries: 1,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindTimeout))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDoSendsFormAndUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, DefaultUserAgent, r.UserAgent())
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, []string{"a", "b"}, r.PostForm["magnets[]"])
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	form := url.Values{}
	form.Add("magnets[]", "a")
	form.Add("magnets[]", "b")
	header := http.Header{}
	header.Set("Authorization", "Bearer key")

	body, err := fastTransport().Do(context.Background(), Request{
		Method:  http.MethodPost,
		URL:     srv.URL,
		Header:  header,
		Form:    form,
		Retries: NoRetries,
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}
