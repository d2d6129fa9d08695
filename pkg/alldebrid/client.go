// Package alldebrid is a small client for the AllDebrid v4 API. It only speaks
// the wire protocol; caching, rate limiting and circuit breaking belong to the
// caller.
package alldebrid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/amaumene/miaou/internal/errors"
	"github.com/amaumene/miaou/pkg/httputil"
)

const (
	DefaultBaseURL = "https://api.alldebrid.com"
	agent          = "miaou"

	defaultTimeout = 10 * time.Second
	uploadTimeout  = 15 * time.Second
	requestRetries = 2
)

// VideoExtensions are the file types kept from a magnet listing.
var VideoExtensions = []string{".mp4", ".mkv", ".avi", ".mov", ".wmv"}

type Client struct {
	transport *httputil.Transport
	baseURL   string
}

type Option func(*Client)

// WithBaseURL points the client at another host, typically a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithTransport(t *httputil.Transport) Option {
	return func(c *Client) { c.transport = t }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		transport: httputil.NewTransport(),
		baseURL:   DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is an error reported in the body of a response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("AllDebrid API error: %s - %s", e.Code, e.Message)
}

type response[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *APIError `json:"error,omitempty"`
}

// UploadedMagnet is one entry of a magnet upload response.
type UploadedMagnet struct {
	Magnet string    `json:"magnet"`
	ID     int64     `json:"id"`
	Hash   string    `json:"hash"`
	Name   string    `json:"name"`
	Size   int64     `json:"size"`
	Ready  bool      `json:"ready"`
	Error  *APIError `json:"error,omitempty"`
}

// MagnetStatus is one magnet of the account as listed by v4.1 status.
type MagnetStatus struct {
	ID         int64  `json:"id"`
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
	Hash       string `json:"hash"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	UploadDate int64  `json:"uploadDate"`
}

// FileNode is a file or a folder of the nested listing. Folders carry
// entries in E and no link.
type FileNode struct {
	N string     `json:"n"`
	S int64      `json:"s,omitempty"`
	L string     `json:"l,omitempty"`
	E []FileNode `json:"e,omitempty"`
}

// File is a flattened, playable entry of a listing.
type File struct {
	Name string
	Size int64
	Link string
}

// UnlockedLink is the result of unlocking a hoster link.
type UnlockedLink struct {
	Link     string `json:"link"`
	Filename string `json:"filename"`
	Host     string `json:"host"`
	Filesize int64  `json:"filesize"`
}

// UploadMagnets submits hashes in one batched call.
func (c *Client) UploadMagnets(ctx context.Context, apiKey string, hashes []string) ([]UploadedMagnet, error) {
	form := url.Values{}
	for _, h := range hashes {
		form.Add("magnets[]", h)
	}

	var resp response[struct {
		Magnets []UploadedMagnet `json:"magnets"`
	}]
	if err := c.post(ctx, apiKey, "/v4/magnet/upload", form, uploadTimeout, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Magnets, nil
}

// MagnetStatus lists every magnet of the account.
func (c *Client) MagnetStatus(ctx context.Context, apiKey string) ([]MagnetStatus, error) {
	var resp response[struct {
		Magnets json.RawMessage `json:"magnets"`
	}]
	if err := c.post(ctx, apiKey, "/v4.1/magnet/status", url.Values{}, defaultTimeout, &resp); err != nil {
		return nil, err
	}

	raw := resp.Data.Magnets
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	// a single magnet comes back as an object instead of an array
	if raw[0] == '{' {
		var one MagnetStatus
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, apperrors.NewTransportError(apperrors.KindAPI, "AllDebrid", fmt.Errorf("failed to decode magnet status: %w", err))
		}
		return []MagnetStatus{one}, nil
	}

	var many []MagnetStatus
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, apperrors.NewTransportError(apperrors.KindAPI, "AllDebrid", fmt.Errorf("failed to decode magnet status: %w", err))
	}
	return many, nil
}

// MagnetFiles returns the nested file tree of one magnet.
func (c *Client) MagnetFiles(ctx context.Context, apiKey string, magnetID int64) ([]FileNode, error) {
	form := url.Values{}
	form.Add("id[]", strconv.FormatInt(magnetID, 10))

	var resp response[struct {
		Magnets []struct {
			Files []FileNode `json:"files"`
			Error *APIError  `json:"error,omitempty"`
		} `json:"magnets"`
	}]
	if err := c.post(ctx, apiKey, "/v4/magnet/files", form, defaultTimeout, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data.Magnets) == 0 {
		return nil, nil
	}
	if e := resp.Data.Magnets[0].Error; e != nil {
		return nil, apperrors.NewTransportError(apperrors.KindAPI, "AllDebrid", e)
	}
	return resp.Data.Magnets[0].Files, nil
}

// UnlockLink converts a hoster link into a direct download URL.
func (c *Client) UnlockLink(ctx context.Context, apiKey, link string) (*UnlockedLink, error) {
	form := url.Values{}
	form.Set("link", link)

	var resp response[UnlockedLink]
	if err := c.post(ctx, apiKey, "/v4/link/unlock", form, defaultTimeout, &resp); err != nil {
		return nil, err
	}
	if resp.Data.Link == "" {
		return nil, apperrors.NewTransportError(apperrors.KindAPI, "AllDebrid", fmt.Errorf("empty unlocked link"))
	}
	return &resp.Data, nil
}

// DeleteMagnets removes magnets from the account in one call.
func (c *Client) DeleteMagnets(ctx context.Context, apiKey string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	form := url.Values{}
	for _, id := range ids {
		form.Add("ids[]", strconv.FormatInt(id, 10))
	}

	var resp response[json.RawMessage]
	return c.post(ctx, apiKey, "/v4/magnet/delete", form, defaultTimeout, &resp)
}

// VideoFiles flattens nodes and keeps only video files.
func VideoFiles(nodes []FileNode) []File {
	var files []File
	for _, node := range nodes {
		if len(node.E) > 0 {
			files = append(files, VideoFiles(node.E)...)
			continue
		}
		if node.N == "" || node.L == "" || !IsVideo(node.N) {
			continue
		}
		files = append(files, File{Name: node.N, Size: node.S, Link: node.L})
	}
	return files
}

// IsVideo reports whether name has one of VideoExtensions.
func IsVideo(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, v := range VideoExtensions {
		if ext == v {
			return true
		}
	}
	return false
}

type statusChecker interface {
	status() (string, *APIError)
}

func (r *response[T]) status() (string, *APIError) {
	return r.Status, r.Error
}

func (c *Client) post(ctx context.Context, apiKey, endpoint string, form url.Values, timeout time.Duration, out statusChecker) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)

	err := c.transport.DoJSON(ctx, httputil.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + endpoint + "?agent=" + agent,
		Header:  header,
		Form:    form,
		Timeout: timeout,
		Retries: requestRetries,
		Source:  "AllDebrid",
	}, out)
	if err != nil {
		return err
	}

	status, apiErr := out.status()
	if status != "success" {
		if apiErr == nil {
			apiErr = &APIError{Code: "UNKNOWN", Message: "status " + status}
		}
		return apperrors.NewTransportError(apperrors.KindAPI, "AllDebrid", apiErr)
	}
	return nil
}
