package format

import "errors"

// ErrTruncated indicates a buffer too short to hold a raw descriptor.
var ErrTruncated = errors.New("format: truncated")
