// Package pagination parses the pageSize/pageToken query parameters shared by
// every listing endpoint and round-trips Firestore resume cursors as opaque
// tokens.
package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize is used when the client omits pageSize.
	DefaultPageSize = 20
	// MaxPageSize caps pageSize so a single listing cannot sweep a whole
	// collection.
	MaxPageSize = 100
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid pageSize")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
)

// Params is the normalised pager extracted from a listing request.
type Params struct {
	PageSize  int
	PageToken string
	Cursor    Cursor
}

// Options let a handler group override the page-size bounds. Zero values fall
// back to the package defaults.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

// FromRequest reads pageSize and pageToken from the request's query string.
// An out-of-range pageSize is clamped to the maximum; a malformed one is an
// error so the client learns about the typo instead of silently getting the
// default page.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}

	max := opts.MaxPageSize
	if max <= 0 {
		max = MaxPageSize
	}
	size := opts.DefaultPageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > max {
		size = max
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("pageSize")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
		}
		if parsed <= 0 {
			return Params{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
		}
		size = parsed
		if size > max {
			size = max
		}
	}

	params := Params{PageSize: size}

	if token := strings.TrimSpace(r.URL.Query().Get("pageToken")); token != "" {
		cursor, err := DecodeToken(token)
		if err != nil {
			return Params{}, err
		}
		params.PageToken = token
		params.Cursor = cursor
	}

	return params, nil
}
