package pagination

import "fmt"

// Validate checks params against config.
func (p Params) Validate(config Config) error {
	if p.Page < 1 {
		return fmt.Errorf("%w: page must be a positive integer", ErrInvalidParams)
	}
	if p.Limit < 1 || p.Limit > config.MaxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidParams, config.MaxLimit)
	}
	if maxPage := MaxPage(p.Limit); p.Page > maxPage {
		return fmt.Errorf("%w: page must not exceed %d", ErrInvalidParams, maxPage)
	}
	return nil
}

// WithDefaults fills zero values from config, caps the limit at MaxLimit and
// the page at MaxPage.
func (p Params) WithDefaults(config Config) Params {
	if p.Page <= 0 {
		p.Page = config.DefaultPage
	}
	if p.Limit <= 0 {
		p.Limit = config.DefaultLimit
	}
	if p.Limit > config.MaxLimit {
		p.Limit = config.MaxLimit
	}
	if maxPage := MaxPage(p.Limit); p.Page > maxPage {
		p.Page = maxPage
	}
	return p
}
