// Package lifecycle classifies roll messages and drives their flag-based
// lifecycle: Unseen → Pending → Merging → Injected → Finalized.
//
// Everything here except EnsureDualRoll is a pure function of the message.
// EnsureDualRoll never mutates its input; callers persist the returned clone
// as one update so a half-upgraded roll is never visible.
package lifecycle
