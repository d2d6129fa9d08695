package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	apperrors "github.com/amaumene/miaou/internal/errors"
	"github.com/amaumene/miaou/pkg/logger"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 15 * time.Second
	DefaultJitter     = time.Second
	DefaultUserAgent  = "SmartBlueCat/1.0 (compatible)"

	// NoRetries disables retrying for a single request.
	NoRetries = -1

	maxBodySize = 16 << 20
)

// Request describes one logical call. Form, when set, is sent as an
// url-encoded body and rebuilt on every attempt.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Form    url.Values
	Timeout time.Duration
	// Retries is the number of retries after the first attempt. Zero means
	// DefaultMaxRetries, NoRetries means a single attempt.
	Retries int
	// Source names the upstream in logs and errors.
	Source string
}

// Transport wraps an http.Client with per-attempt timeouts and bounded
// exponential backoff with jitter.
type Transport struct {
	client    *http.Client
	baseDelay time.Duration
	maxDelay  time.Duration
	jitter    time.Duration
	userAgent string
	logger    logger.Logger
	randFn    func(n int64) int64
}

// Option configures a Transport.
type Option func(*Transport)

func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.client = c }
}

func WithBackoff(base, max, jitter time.Duration) Option {
	return func(t *Transport) {
		t.baseDelay = base
		t.maxDelay = max
		t.jitter = jitter
	}
}

func WithLogger(l logger.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

func WithUserAgent(ua string) Option {
	return func(t *Transport) { t.userAgent = ua }
}

// NewTransport creates a Transport with the default retry policy.
func NewTransport(opts ...Option) *Transport {
	t := &Transport{
		client:    NewDefaultHTTPClient(),
		baseDelay: DefaultBaseDelay,
		maxDelay:  DefaultMaxDelay,
		jitter:    DefaultJitter,
		userAgent: DefaultUserAgent,
		logger:    logger.Nop(),
		randFn:    rand.Int64N,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// BackoffDelay returns base * 2^attempt plus jitter, capped at max.
func BackoffDelay(attempt uint, base, max, jitter time.Duration, randFn func(int64) int64) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	delay := base * time.Duration(1<<attempt)
	if jitter > 0 && randFn != nil {
		delay += time.Duration(randFn(int64(jitter)))
	}
	if max > 0 && (delay > max || delay < 0) {
		return max
	}
	return delay
}

// Do executes req and returns the response body of the first successful
// attempt. Failures are returned as *errors.TransportError.
func (t *Transport) Do(ctx context.Context, req Request) ([]byte, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Timeout <= 0 {
		req.Timeout = DefaultTimeout
	}
	if req.Source == "" {
		req.Source = "HTTP"
	}

	var body []byte
	err := retry.Do(
		func() error {
			b, err := t.attempt(ctx, req)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts(req.Retries))),
		retry.RetryIf(apperrors.Retryable),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return BackoffDelay(n, t.baseDelay, t.maxDelay, t.jitter, t.randFn)
		}),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			t.logger.Warnf("[%s] attempt %d failed, retrying: %v", req.Source, n+1, err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// DoJSON executes req and decodes the response body into out.
func (t *Transport) DoJSON(ctx context.Context, req Request, out interface{}) error {
	body, err := t.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.NewTransportError(apperrors.KindAPI, req.Source, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func attempts(retries int) int {
	switch {
	case retries < 0:
		return 1
	case retries == 0:
		return DefaultMaxRetries + 1
	default:
		return retries + 1
	}
}

func (t *Transport) attempt(ctx context.Context, req Request) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	var bodyReader io.Reader
	if req.Form != nil {
		bodyReader = strings.NewReader(req.Form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, retry.Unrecoverable(apperrors.NewTransportError(apperrors.KindClient, req.Source, err))
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if req.Form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, t.classify(ctx, attemptCtx, req, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, t.classify(ctx, attemptCtx, req, err)
	}

	if resp.StatusCode >= 400 {
		t.logger.Warnf("[%s] HTTP %d: %s", req.Source, resp.StatusCode, http.StatusText(resp.StatusCode))
		return nil, apperrors.NewStatusError(req.Source, resp.StatusCode)
	}

	return body, nil
}

func (t *Transport) classify(parent, attemptCtx context.Context, req Request, err error) error {
	if parent.Err() != nil {
		return retry.Unrecoverable(apperrors.NewTransportError(apperrors.KindTimeout, req.Source, parent.Err()))
	}

	var netErr net.Error
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		t.logger.Warnf("[%s] timeout after %v", req.Source, req.Timeout)
		return apperrors.NewTransportError(apperrors.KindTimeout, req.Source, err)
	}

	t.logger.Warnf("[%s] request failed: %v", req.Source, err)
	return apperrors.NewTransportError(apperrors.KindNetwork, req.Source, err)
}
