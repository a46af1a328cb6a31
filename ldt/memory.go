package ldt

// Memory is the flat linear memory the descriptor table windows into. The
// host-level allocator that supplies it is a collaborator, not part of this
// core; anything exposing bounds-checked views will do.
type Memory interface {
	// View returns the window [base, base+length) of linear memory, or
	// ok = false when the range is not backed.
	View(base, length uint32) ([]byte, bool)
}
