// Package query implements the four lookup operations over an index
// snapshot: exact address lookup, suggestion with typo tolerance, reverse
// geocoding and housenumber interpolation. Every operation is a pure read;
// the snapshot is never mutated.
package query

import "errors"

const (
	// DefaultZoomThreshold applies when a point falls outside every known
	// boundary; below it reverse answers with the municipality.
	DefaultZoomThreshold = 8

	// MaxEditDistance bounds the typo tolerance of fuzzy suggestions.
	MaxEditDistance = 2

	// GroupLimit caps each suggestion group.
	GroupLimit = 20
)

var (
	ErrNotFound   = errors.New("not found")
	ErrBadRequest = errors.New("bad request")
)
