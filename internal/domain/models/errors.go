package models

import "errors"

var (
	// ErrInsufficientData is returned when a series is shorter than a component's minimum window.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidSeries is returned for unordered, duplicated or non-positive price input.
	ErrInvalidSeries = errors.New("invalid price series")
	// ErrAlignment is returned when series share too few common dates.
	ErrAlignment = errors.New("alignment failure")
	// ErrOptimizationFailed is returned when the constrained solver does not converge.
	ErrOptimizationFailed = errors.New("optimization failed")
	// ErrNotFound is returned by stores when a symbol has no data.
	ErrNotFound = errors.New("not found")
)
