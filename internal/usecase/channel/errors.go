// Package channel manages the set of configured notification channels.
// Writers are serialized; readers always get deep copies.
package channel

import "errors"

// Sentinel errors for channel config operations.
var (
	// ErrConfigNotFound indicates that no config exists for the (name, type) key.
	ErrConfigNotFound = errors.New("channel config not found")

	// ErrDuplicateConfig indicates that a config with the same (name, type) already exists.
	ErrDuplicateConfig = errors.New("channel config already exists")

	// ErrInvalidConfig wraps the *entity.ValidationError describing the first bad field.
	ErrInvalidConfig = errors.New("invalid channel config")
)
