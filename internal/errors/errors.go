// Package errors defines custom error types for better error handling and debugging.
// StreamError provides context-aware error reporting with type classification,
// TransportError classifies upstream failures so callers can decide what to
// retry and what to absorb.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound marks an expected empty result: no metadata, no torrents.
	ErrNotFound = stderrors.New("not found")
	// ErrMalformedInput marks client input rejected before any network call.
	ErrMalformedInput = stderrors.New("malformed input")
)

// StreamError represents errors that occur during stream processing
type StreamError struct {
	Type    string
	Message string
	Cause   error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// Error type constants
const (
	ErrorTypeConfigurationInvalid = "CONFIGURATION_INVALID"
	ErrorTypeAPIKeyMissing        = "API_KEY_MISSING"
	ErrorTypeTMDBFailure          = "TMDB_FAILURE"
	ErrorTypeTorrentSearchFailed  = "TORRENT_SEARCH_FAILED"
	ErrorTypeMagnetProcessFailed  = "MAGNET_PROCESS_FAILED"
	ErrorTypeUnlockFailed         = "UNLOCK_FAILED"
	ErrorTypeInvalidToken         = "INVALID_TOKEN"
	ErrorTypeInvalidID            = "INVALID_ID"
)

// NewStreamError creates a new StreamError
func NewStreamError(errorType, message string, cause error) *StreamError {
	return &StreamError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigurationError creates a configuration-related error
func NewConfigurationError(message string, cause error) *StreamError {
	return NewStreamError(ErrorTypeConfigurationInvalid, message, wrapMalformed(cause))
}

// NewAPIKeyMissingError creates an API key missing error
func NewAPIKeyMissingError(service string) *StreamError {
	return NewStreamError(ErrorTypeAPIKeyMissing, fmt.Sprintf("API key missing for %s", service), ErrMalformedInput)
}

// NewTMDBError creates a TMDB-related error
func NewTMDBError(message string, cause error) *StreamError {
	return NewStreamError(ErrorTypeTMDBFailure, message, cause)
}

// NewTorrentSearchError creates a torrent search error
func NewTorrentSearchError(message string, cause error) *StreamError {
	return NewStreamError(ErrorTypeTorrentSearchFailed, message, cause)
}

// NewMagnetProcessError creates a magnet processing error
func NewMagnetProcessError(message string, cause error) *StreamError {
	return NewStreamError(ErrorTypeMagnetProcessFailed, message, cause)
}

// NewUnlockError creates an unlock failure error
func NewUnlockError(message string, cause error) *StreamError {
	return NewStreamError(ErrorTypeUnlockFailed, message, cause)
}

// NewInvalidTokenError creates a malformed unlock token error
func NewInvalidTokenError(cause error) *StreamError {
	return NewStreamError(ErrorTypeInvalidToken, "invalid unlock token", wrapMalformed(cause))
}

// NewInvalidIDError creates an invalid ID error
func NewInvalidIDError(id string) *StreamError {
	return NewStreamError(ErrorTypeInvalidID, fmt.Sprintf("Invalid ID format: %s", id), ErrMalformedInput)
}

func wrapMalformed(cause error) error {
	if cause == nil {
		return ErrMalformedInput
	}
	return fmt.Errorf("%w: %w", ErrMalformedInput, cause)
}

// Kind classifies a transport failure.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindServer      Kind = "server"
	KindClient      Kind = "client"
	KindNetwork     Kind = "network"
	KindCapacity    Kind = "capacity"
	KindCircuitOpen Kind = "circuit_open"
	KindAPI         Kind = "api"
)

// TransportError is an upstream failure with enough context to decide
// whether it is worth retrying.
type TransportError struct {
	Kind       Kind
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a TransportError of the given kind.
func NewTransportError(kind Kind, op string, err error) *TransportError {
	return &TransportError{Kind: kind, Op: op, Err: err}
}

// NewStatusError classifies an HTTP status code into a TransportError.
func NewStatusError(op string, statusCode int) *TransportError {
	kind := KindClient
	if statusCode >= 500 {
		kind = KindServer
	}
	return &TransportError{
		Kind:       kind,
		Op:         op,
		StatusCode: statusCode,
		Err:        fmt.Errorf("unexpected status %s", http.StatusText(statusCode)),
	}
}

// Retryable reports whether err is a transient failure: timeouts, network
// errors, 5xx, 408 and 429. Everything else, including capacity and open
// circuit errors, is final.
func Retryable(err error) bool {
	var te *TransportError
	if !stderrors.As(err, &te) {
		return false
	}

	switch te.Kind {
	case KindTimeout, KindServer, KindNetwork:
		return true
	case KindClient:
		return te.StatusCode == http.StatusRequestTimeout || te.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}

// IsKind reports whether err carries a TransportError of the given kind.
func IsKind(err error, kind Kind) bool {
	var te *TransportError
	return stderrors.As(err, &te) && te.Kind == kind
}

// IsNotFound reports whether err is an expected empty result.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}

// IsMalformedInput reports whether err is a rejected client input.
func IsMalformedInput(err error) bool {
	return stderrors.Is(err, ErrMalformedInput)
}
