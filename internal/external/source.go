// Package external holds the upstream source adapters and the helpers they share.
package external

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/pkg/httputil"
)

// Transport classifies an HTTP failure as a contracts.TransportError.
// 컨텍스트 취소는 그대로 반환 (재시도 대상 아님)
func Transport(source, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	te := &contracts.TransportError{Source: source, Op: op, Err: err}
	var se *httputil.StatusError
	if errors.As(err, &se) {
		te.StatusCode = se.StatusCode
	}
	return te
}

// GetBody GETs url and classifies failures
func GetBody(ctx context.Context, c *httputil.Client, source, op, url string) ([]byte, error) {
	body, err := c.GetBody(ctx, url)
	if err != nil {
		return nil, Transport(source, op, err)
	}
	return body, nil
}

// GetJSON GETs url and decodes the body; decode failures are ParseErrors
func GetJSON(ctx context.Context, c *httputil.Client, source, op, url string, dest interface{}) error {
	body, err := GetBody(ctx, c, source, op, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return &contracts.ParseError{Source: source, Field: op, Err: err}
	}
	return nil
}

// PostJSON POSTs payload and decodes the JSON answer
func PostJSON(ctx context.Context, c *httputil.Client, source, op, url string, payload, dest interface{}) error {
	body, err := c.PostJSONBody(ctx, url, payload)
	if err != nil {
		return Transport(source, op, err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return &contracts.ParseError{Source: source, Field: op, Err: err}
	}
	return nil
}

// ParseBRNumber parses "1.234,56" style numbers
func ParseBRNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	return strconv.ParseFloat(s, 64)
}

// ParseNumber parses numbers with thousands separators ("1,234.5")
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	return strconv.ParseFloat(s, 64)
}

// PctChange returns (cur-prev)/prev*100, nil when prev is zero
func PctChange(cur, prev float64) *float64 {
	if prev == 0 {
		return nil
	}
	v := (cur - prev) / prev * 100
	return &v
}
