// Package errors provides error handling for platecam.
//
// It re-exports github.com/cockroachdb/errors and defines the error kinds
// used across the render pipeline:
//
//	ErrFormat   - a bounding box or dataset field could not be decoded
//	ErrGeometry - a region degenerated to zero area after clamping
//	ErrIO       - a video or dataset could not be opened, read or written
//	ErrNotFound - a lookup for an unknown key (car id) failed
//
// Kinds are attached with Mark and inspected with Is, so context can be
// wrapped freely without losing the kind:
//
//	return errors.Mark(errors.Wrapf(err, "car_bbox %q", text), errors.ErrFormat)
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint     = crdb.WithHint
	WithHintf    = crdb.WithHintf
	WithDetail   = crdb.WithDetail
	WithDetailf  = crdb.WithDetailf
	FlattenHints = crdb.FlattenHints
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

var AssertionFailedf = crdb.AssertionFailedf

// Error kinds. Wrap these with Mark to classify an error.
var (
	// ErrFormat indicates malformed textual input (bounding box, dataset field)
	ErrFormat = New("format error")

	// ErrGeometry indicates a region that degenerated to zero area
	ErrGeometry = New("geometry error")

	// ErrIO indicates a video or dataset that could not be opened, read or written
	ErrIO = New("io error")

	// ErrNotFound indicates a lookup for an unknown key
	ErrNotFound = New("not found")
)

// KindOf returns a short label for the kind of err, for logs and counters.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrFormat):
		return "format"
	case Is(err, ErrGeometry):
		return "geometry"
	case Is(err, ErrIO):
		return "io"
	case Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
