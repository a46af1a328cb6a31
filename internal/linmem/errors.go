package linmem

import "errors"

var (
	// ErrExhausted indicates the arena has no room for the request.
	ErrExhausted = errors.New("linmem: arena exhausted")

	// ErrBadSize indicates a zero-size allocation request.
	ErrBadSize = errors.New("linmem: zero-size allocation")
)
