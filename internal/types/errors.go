package types

import (
	"errors"
	"fmt"
)

// Sentinel configuration errors. They abort a run; data-quality problems are
// reported as findings instead.
var (
	ErrMissingColumn   = errors.New("required column missing")
	ErrColumnCollision = errors.New("derived column collides with existing column")
	ErrInvalidRecord   = errors.New("record failed schema validation")
)

// ConfigError describes a fatal configuration problem with an input table.
type ConfigError struct {
	Op     string
	Table  string
	Column string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: table %q column %q: %v", e.Op, e.Table, e.Column, e.Err)
	}
	return fmt.Sprintf("%s: table %q: %v", e.Op, e.Table, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
