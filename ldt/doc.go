// Package ldt manages the descriptor table of a 16-bit to 32-bit
// compatibility layer: a bounded table of segment descriptors addressed by
// 16-bit selectors, emulating x86 segmented addressing on top of flat
// linear memory.
//
// # Overview
//
// The core type is Table: 8192 descriptor slots plus an allocation bitmap
// and a single table-wide lock. A selector's high 13 bits index a slot; the
// low 3 bits carry table-origin and privilege and never participate in
// indexing. Slot state changes only through the allocation entry points
// (AllocRun, AllocArray, CopySelector, AllocBlock, ResizeBlock) and the
// free entry points, so the bitmap stays the sole authority on which
// descriptors are live.
//
// Multi-selector blocks windowing regions larger than 64KiB are managed by
// the block operations (AllocBlock, FreeBlock, ResizeBlock). Each is a
// single critical section covering both slot marking and descriptor
// writes, so partial block states are never observable.
//
// Allocation is a first-fit forward scan from a fixed first-usable index.
// The run counter resets every time an allocated slot is encountered, which
// deliberately favors reusing low, previously-freed slots over finding
// larger runs further up. That allocation order is a compatibility surface
// for legacy callers and must not be "improved".
//
// # Failure model
//
// Resource exhaustion (no free run of the requested length) is reported as
// the null selector 0; callers must treat 0 as always-invalid. Contract
// violations (touching a free selector, freeing a pinned one, installing an
// inconsistent descriptor) are reported through the sentinel errors in this
// package and never leave the table partially mutated.
//
// # Execution contexts
//
// Context models one emulated execution context with its cached segment
// registers. Freeing a selector a registered context has cached resets the
// cached value to the null selector instead of leaving it dangling, because
// the legacy context cannot be interrupted to fix this itself. Contexts
// backed by a remote owner answer descriptor queries through an EntrySource
// and distinguish "no allocation at that slot" from "invalid context".
package ldt
