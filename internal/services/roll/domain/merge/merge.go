// Package merge folds standalone activity sub-rolls into the usage message
// that raised them.
package merge

import (
	"errors"
	"fmt"

	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
)

var (
	// ErrNotMergeable indicates the child is not an attack or damage sub-roll.
	ErrNotMergeable = errors.New("message is not a mergeable sub-roll")
	// ErrParentMismatch indicates the child was not raised by the given parent.
	ErrParentMismatch = errors.New("sub-roll does not belong to parent")
)

// Result holds the merged parent and the child as it stands before deletion.
type Result struct {
	Parent message.Message
	Child  message.Message
}

// Merge appends the child's rolls to a copy of the parent and stamps the
// render and classification flags. Neither input is modified. The caller is
// responsible for persisting the parent and deleting the child atomically.
func Merge(parent, child message.Message, childType message.RollType) (Result, error) {
	if child.OriginatingMessageID == "" || child.OriginatingMessageID != parent.ID {
		return Result{}, fmt.Errorf("%w: child %s, parent %s", ErrParentMismatch, child.ID, parent.ID)
	}

	out := parent.Clone()
	switch childType {
	case message.RollTypeAttack:
		out.Flags.RenderAttack = true
	case message.RollTypeDamage:
		out.Flags.RenderDamage = true
		out.Flags.IsHealing = child.ActivityType == message.ActivityHeal
		if len(child.Rolls) > 0 {
			out.Flags.IsCritical = child.Rolls[0].Critical
		}
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrNotMergeable, childType)
	}
	out.Flags.QuickRoll = true
	for _, roll := range child.Rolls {
		out.Rolls = append(out.Rolls, roll.Clone())
	}
	out.Recompute()

	stale := child.Clone()
	stale.Flags.Processed = false
	return Result{Parent: out, Child: stale}, nil
}
