package device

import "errors"

// Contract violations are rejected before anything is enqueued. They are
// programming errors, never silently truncated or wrapped around.
var (
	// ErrAlignment: the flat copy path requires the element count to be a
	// multiple of the wider format's vector width.
	ErrAlignment = errors.New("element count not aligned to vector width")

	// ErrGeometry: width/height not tile-aligned, or no supported block
	// height exists for the requested block size and element format.
	ErrGeometry = errors.New("unsupported launch geometry")

	// ErrShape: source and destination views disagree about the element
	// count the launch implies.
	ErrShape = errors.New("tensor shape mismatch")

	// ErrTornDown: the scratch allocator was torn down and is unusable.
	ErrTornDown = errors.New("scratch allocator torn down")
)
