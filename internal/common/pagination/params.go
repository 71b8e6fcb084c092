package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// ErrInvalidParams is wrapped by every parameter parsing error.
var ErrInvalidParams = errors.New("invalid pagination parameters")

// Params represents pagination query parameters from an HTTP request.
type Params struct {
	Page  int // 1-based page number
	Limit int // Items per page
}

// Offset returns the row offset of the page.
func (p Params) Offset() int {
	return CalculateOffset(p.Page, p.Limit)
}

// ParseQueryParams reads ?page= and ?limit=, applying config defaults for
// missing values. Malformed or out-of-range values are an error.
func ParseQueryParams(r *http.Request, config Config) (Params, error) {
	params := Params{
		Page:  config.DefaultPage,
		Limit: config.DefaultLimit,
	}

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return params, fmt.Errorf("%w: page must be a positive integer", ErrInvalidParams)
		}
		params.Page = page
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > config.MaxLimit {
			return params, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidParams, config.MaxLimit)
		}
		params.Limit = limit
	}

	if maxPage := MaxPage(params.Limit); params.Page > maxPage {
		return params, fmt.Errorf("%w: page must not exceed %d", ErrInvalidParams, maxPage)
	}
	return params, nil
}
