package pagination_test

import (
	"errors"
	"math"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"notify-dispatch/internal/common/pagination"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	assert.Equal(t, pagination.Config{DefaultPage: 1, DefaultLimit: 50, MaxLimit: 500}, pagination.DefaultConfig())
}

func TestLoadFromEnv(t *testing.T) {
	t.Run("with all env vars set", func(t *testing.T) {
		t.Setenv("PAGINATION_DEFAULT_PAGE", "2")
		t.Setenv("PAGINATION_DEFAULT_LIMIT", "30")
		t.Setenv("PAGINATION_MAX_LIMIT", "200")

		assert.Equal(t, pagination.Config{DefaultPage: 2, DefaultLimit: 30, MaxLimit: 200}, pagination.LoadFromEnv())
	})

	t.Run("with no env vars", func(t *testing.T) {
		t.Setenv("PAGINATION_DEFAULT_PAGE", "")
		t.Setenv("PAGINATION_DEFAULT_LIMIT", "")
		t.Setenv("PAGINATION_MAX_LIMIT", "")

		assert.Equal(t, pagination.DefaultConfig(), pagination.LoadFromEnv())
	})

	t.Run("default limit above max is capped", func(t *testing.T) {
		t.Setenv("PAGINATION_DEFAULT_PAGE", "0")
		t.Setenv("PAGINATION_DEFAULT_LIMIT", "80")
		t.Setenv("PAGINATION_MAX_LIMIT", "40")

		assert.Equal(t, pagination.Config{DefaultPage: 1, DefaultLimit: 40, MaxLimit: 40}, pagination.LoadFromEnv())
	})
}

func TestParseQueryParams(t *testing.T) {
	t.Parallel()

	config := pagination.DefaultConfig()
	tests := []struct {
		name      string
		query     string
		want      pagination.Params
		wantError bool
	}{
		{name: "valid parameters", query: "page=2&limit=30", want: pagination.Params{Page: 2, Limit: 30}},
		{name: "no parameters", query: "", want: pagination.Params{Page: 1, Limit: 50}},
		{name: "only page", query: "page=3", want: pagination.Params{Page: 3, Limit: 50}},
		{name: "limit at max", query: "limit=500", want: pagination.Params{Page: 1, Limit: 500}},
		{name: "limit above max", query: "limit=501", wantError: true},
		{name: "zero page", query: "page=0", wantError: true},
		{name: "negative limit", query: "limit=-1", wantError: true},
		{name: "non-numeric page", query: "page=abc", wantError: true},
		{name: "page offset overflows", query: "page=9223372036854775807&limit=50", wantError: true},
		{name: "page beyond int range", query: "page=99999999999999999999", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest("GET", "/notify/history?"+tt.query, nil)
			got, err := pagination.ParseQueryParams(req, config)
			if tt.wantError {
				assert.True(t, errors.Is(err, pagination.ErrInvalidParams), "err=%v", err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateOffsetAndPages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, pagination.CalculateOffset(1, 50))
	assert.Equal(t, 20, pagination.CalculateOffset(3, 10))
	assert.Equal(t, 450, pagination.Params{Page: 10, Limit: 50}.Offset())
	assert.Equal(t, 0, pagination.CalculateOffset(0, 50))
	assert.Equal(t, math.MaxInt, pagination.CalculateOffset(math.MaxInt, 50), "saturates")
	assert.GreaterOrEqual(t, pagination.CalculateOffset(pagination.MaxPage(50), 50), 0)

	assert.Equal(t, 1, pagination.CalculateTotalPages(0, 50))
	assert.Equal(t, 1, pagination.CalculateTotalPages(50, 50))
	assert.Equal(t, 2, pagination.CalculateTotalPages(51, 50))

	md := pagination.NewMetadata(pagination.Params{Page: 2, Limit: 20}, 41)
	assert.Equal(t, pagination.Metadata{Total: 41, Page: 2, Limit: 20, TotalPages: 3}, md)
}

func TestParams_ValidateAndDefaults(t *testing.T) {
	t.Parallel()

	config := pagination.DefaultConfig()
	assert.NoError(t, pagination.Params{Page: 1, Limit: 500}.Validate(config))
	assert.Error(t, pagination.Params{Page: 0, Limit: 10}.Validate(config))
	assert.Error(t, pagination.Params{Page: 1, Limit: 501}.Validate(config))

	assert.Equal(t, pagination.Params{Page: 1, Limit: 50}, pagination.Params{}.WithDefaults(config))
	assert.Equal(t, pagination.Params{Page: 4, Limit: 500}, pagination.Params{Page: 4, Limit: 9999}.WithDefaults(config))

	huge := pagination.Params{Page: math.MaxInt, Limit: 50}
	assert.ErrorIs(t, huge.Validate(config), pagination.ErrInvalidParams)
	assert.Equal(t, pagination.MaxPage(50), huge.WithDefaults(config).Page)
}
