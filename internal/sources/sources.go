// Package sources fetches the upstream feeds and parses them into canonical
// records. Each adapter covers one document family, is independent of the
// others and skips (but counts) malformed records; only structurally broken
// input fails the adapter, and never its siblings.
package sources

import (
	"context"
	"fmt"

	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
)

// Batch is one adapter's canonical output; only the slice matching the
// adapter's family is populated.
type Batch struct {
	Addresses      []model.Address
	Segments       []model.StreetSegment
	Municipalities []model.Municipality
	Features       []model.NamedFeature
}

// Len is the record count of the populated family.
func (b *Batch) Len() int {
	return len(b.Addresses) + len(b.Segments) + len(b.Municipalities) + len(b.Features)
}

// Diag carries the per-source run diagnostics aggregated by the importer.
type Diag struct {
	Source  string `json:"source"`
	Parsed  int    `json:"parsed"`
	Skipped int    `json:"skipped"`
	Fetch   string `json:"fetch,omitempty"` // fresh | unchanged | cached | skipped
	Error   string `json:"error,omitempty"`
}

// Adapter parses one cached feed file into canonical records.
type Adapter interface {
	Name() string
	Parse(ctx context.Context, path string) (*Batch, Diag, error)
}

// ParseError marks structurally invalid input, as opposed to a malformed
// record which is skipped and counted.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string { return fmt.Sprintf("%s: parse: %v", e.Source, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// FetchError marks an upstream that stayed unreachable through all retries.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string { return fmt.Sprintf("%s: fetch: %v", e.Source, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// errMissingColumn reports a CSV header missing a column the adapter
// depends on.
type errMissingColumn string

func (e errMissingColumn) Error() string { return "missing column " + string(e) }
