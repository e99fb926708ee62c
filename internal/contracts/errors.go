package contracts

import (
	"errors"
	"fmt"
)

// ErrCacheMiss signals that no last-good snapshot exists for an adapter.
// 실패가 아니라 신호: 호출자는 status=error 스냅샷으로 변환
var ErrCacheMiss = errors.New("cache miss")

// TransportError is a network failure, timeout or non-2xx upstream response
type TransportError struct {
	Source     string
	Op         string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s: status %d: %v", e.Source, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether a retry may succeed.
// 4xx (429 제외)는 재시도해도 결과가 같으므로 false
func (e *TransportError) Temporary() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// ParseError is an upstream payload whose shape changed.
// 재시도하지 않고 즉시 cache fallback
type ParseError struct {
	Source string
	Field  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: parse %s: %v", e.Source, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: parse: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// RenderError is a failure producing a PDF or video artifact
type RenderError struct {
	Artifact string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Artifact, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a temporary TransportError
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Temporary()
}

// ErrorKind names the error class for structured snapshot errors
func ErrorKind(err error) string {
	var te *TransportError
	var pe *ParseError
	var re *RenderError
	switch {
	case errors.As(err, &te):
		return "transport"
	case errors.As(err, &pe):
		return "parse"
	case errors.As(err, &re):
		return "render"
	case errors.Is(err, ErrCacheMiss):
		return "cache_miss"
	default:
		return "internal"
	}
}
