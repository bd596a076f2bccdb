package core

import (
	"errors"
	"fmt"
)

// Configuration errors. These fail a whole conversion; per-cell data problems
// never surface as errors.
var (
	ErrUnknownTargetType = errors.New("unknown target type")
	ErrInvalidMaxLength  = errors.New("max length must be positive")
	ErrMissingConfig     = errors.New("no configuration for column")
	ErrColumnNotFound    = errors.New("column not found")
	ErrNoColumnsSelected = errors.New("no columns selected")
	ErrDuplicateColumn   = errors.New("column selected more than once")
)

// Input errors raised while loading a source table.
var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("empty file")
	ErrSheetNotFound     = errors.New("sheet not found")
	ErrFileTooLarge      = errors.New("file too large")
	ErrNoFile            = errors.New("no file provided")
)

// ConfigError identifies the column or parameter that made a plan unusable.
type ConfigError struct {
	Column string // offending column, if any
	Param  string // offending parameter, e.g. "type" or "max_length"
	Err    error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Column != "" && e.Param != "":
		return fmt.Sprintf("column %q %s: %v", e.Column, e.Param, e.Err)
	case e.Column != "":
		return fmt.Sprintf("column %q: %v", e.Column, e.Err)
	case e.Param != "":
		return fmt.Sprintf("%s: %v", e.Param, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *ConfigError) Unwrap() error { return e.Err }

// configErr wraps err for column, picking the parameter from the error kind.
func configErr(column string, err error) *ConfigError {
	ce := &ConfigError{Column: column, Err: err}
	switch {
	case errors.Is(err, ErrUnknownTargetType):
		ce.Param = "type"
	case errors.Is(err, ErrInvalidMaxLength):
		ce.Param = "max_length"
	}
	return ce
}
