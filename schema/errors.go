package schema

import (
	"errors"
	"fmt"
)

// Sentinel errors. Wrap them with fmt.Errorf or the typed errors below and test with errors.Is.
var (
	ErrParse               = errors.New("parse failed")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrHistoryUnavailable  = errors.New("history unavailable")
	ErrCacheKeyMismatch    = errors.New("history cache key mismatch")
	ErrAggregation         = errors.New("aggregation failed")
	ErrKPIOwnership        = errors.New("kpi owned by another source")
)

// ParseError is returned when a file cannot be turned into a usable syntax tree.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrParse, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrParse, e.Path, e.Reason)
}

// Unwrap lets errors.Is match ErrParse.
func (e *ParseError) Unwrap() error { return ErrParse }

// AggregationError describes a metric that could not be combined for a directory.
type AggregationError struct {
	Dir    string
	Metric string
	Reason string
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("%s: %s in %q: %s", ErrAggregation, e.Metric, e.Dir, e.Reason)
}

// Unwrap lets errors.Is match ErrAggregation.
func (e *AggregationError) Unwrap() error { return ErrAggregation }
