// Package pool is the coding assignment engine: a durable queue of coding
// slots over extracted utterances. Every utterance carries exactly three
// slots, each to be completed by a distinct coder. All state transitions are
// single conditional updates, so the engine is safe under concurrent coders
// on any storage engine with atomic single-row conditional updates.
package pool

import "errors"

var (
	// ErrQueueExhausted means no work item is currently eligible for the
	// requesting coder. A normal outcome, not a failure.
	ErrQueueExhausted = errors.New("pool: no work item available for this coder")

	// ErrStaleLease means the work item is no longer leased to the coder,
	// typically because the reclaim sweep took it back. The caller should
	// request a fresh item.
	ErrStaleLease = errors.New("pool: work item not leased to this coder")

	// ErrInvariant reports an internal-consistency violation (a fourth slot,
	// a double assignment). It indicates a bug, never a runtime condition to
	// recover from.
	ErrInvariant = errors.New("pool: invariant violation")
)
