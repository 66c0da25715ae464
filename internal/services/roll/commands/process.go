package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/quickroll/internal/platform/requestctx"
	"github.com/louisbranch/quickroll/internal/platform/timeouts"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/lifecycle"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/merge"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
	"github.com/louisbranch/quickroll/internal/services/roll/storage"
)

// Process runs the pipeline for one delivery of a message to the calling user.
//
// Foreign messages are adopted when vanilla mode is on. Pending usage
// messages run their activity actions once, for their author only. Processed
// messages wait for their dice animation, receive companion d20s when
// AlwaysMultiRoll is set, are validated against their declared type and
// finally have their content assembled; standalone sub-rolls are folded into
// their parent. Validation mismatches leave the message untouched.
func (s *Service) Process(ctx context.Context, messageID string) (_ Outcome, err error) {
	ctx, span := s.start(ctx, "process", messageID)
	defer func() { finish(span, err) }()

	msg, err := s.get(ctx, messageID)
	if err != nil {
		return Outcome{}, fail(messageID, "process message", err)
	}

	switch lifecycle.PhaseOf(msg) {
	case lifecycle.PhaseUnseen:
		if !s.policy.Vanilla {
			return s.outcome(ctx, msg), nil
		}
		msg, err = s.adoptVanilla(ctx, messageID)
		if err != nil {
			return Outcome{}, fail(messageID, "adopt message", err)
		}
		return s.outcome(ctx, msg), nil
	case lifecycle.PhasePending:
		msg, err = s.runPending(ctx, msg)
		if err != nil {
			return Outcome{}, fail(messageID, "run activity actions", err)
		}
		return s.outcome(ctx, msg), nil
	case lifecycle.PhaseMerging, lifecycle.PhaseInjected, lifecycle.PhaseFinalized:
	}

	if msg.Animating {
		if msg, err = s.waitForAnimation(ctx, messageID); err != nil {
			return Outcome{}, fail(messageID, "wait for animation", err)
		}
	}

	viewer := requestctx.UserIDFromContext(ctx)
	if s.policy.AlwaysMultiRoll && msg.IsAuthor(viewer) && !lifecycle.IsMultiRoll(msg) {
		if msg, err = s.enforceDual(ctx, messageID); err != nil {
			return Outcome{}, fail(messageID, "enforce dual roll", err)
		}
	}

	rollType := lifecycle.Classify(msg)
	if err := lifecycle.Validate(msg, rollType); err != nil {
		s.logger.WarnContext(ctx, "skipping augmentation", "roll_type", rollType, "error", err)
		return s.outcome(ctx, msg), nil
	}

	switch rollType {
	case message.RollTypeDamage:
		if msg.ItemID == "" {
			if msg, err = s.stampEnricher(ctx, messageID); err != nil {
				return Outcome{}, fail(messageID, "stamp damage enricher", err)
			}
			break
		}
		fallthrough
	case message.RollTypeAttack:
		if !lifecycle.IsStandaloneSubRoll(msg) || !msg.IsAuthor(viewer) {
			break
		}
		parent, err := s.mergeIntoParent(ctx, msg, rollType)
		switch {
		case errors.Is(err, errParentMissing):
			s.logger.InfoContext(ctx, "parent message missing, sub-roll stays standalone", "parent_id", msg.OriginatingMessageID)
		case err != nil:
			return Outcome{}, fail(messageID, "merge sub-roll", err)
		default:
			out := s.outcome(ctx, parent)
			out.MergedInto = parent.ID
			return out, nil
		}
	case message.RollTypeNone, message.RollTypeActivity, message.RollTypeFormula,
		message.RollTypeSkill, message.RollTypeAbilitySave, message.RollTypeAbilityTest,
		message.RollTypeDeathSave, message.RollTypeTool, message.RollTypeConcentration:
	}
	return s.outcome(ctx, msg), nil
}

// Classify returns the roll type of a stored message.
func (s *Service) Classify(ctx context.Context, messageID string) (message.RollType, error) {
	msg, err := s.get(ctx, messageID)
	if err != nil {
		return message.RollTypeNone, fail(messageID, "classify message", err)
	}
	return lifecycle.Classify(msg), nil
}

func (s *Service) adoptVanilla(ctx context.Context, messageID string) (message.Message, error) {
	unlock := s.locks.Lock(messageID)
	defer unlock()

	msg, err := s.get(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	if msg.Flags.QuickRoll {
		return msg, nil
	}
	lifecycle.MarkVanilla(&msg)
	return s.update(ctx, msg)
}

// runPending runs the activity actions of a usage message for its author and
// then marks it processed. Actions create sub-roll messages that merge back
// into this one, so no lock is held while they run. A delivery that finds
// the actions already in flight returns the current message untouched.
func (s *Service) runPending(ctx context.Context, msg message.Message) (message.Message, error) {
	if lifecycle.Classify(msg) != message.RollTypeActivity || !msg.IsAuthor(requestctx.UserIDFromContext(ctx)) {
		return msg, nil
	}
	if s.actions == nil {
		return msg, fmt.Errorf("%w: activity actions", ErrCollaboratorUnavailable)
	}

	release, claimed, current, err := s.claimPending(ctx, msg.ID)
	if err != nil {
		return message.Message{}, err
	}
	if !claimed {
		return current, nil
	}
	defer release()

	if err := s.actions.RunActivityActions(ctx, current); err != nil {
		return current, fmt.Errorf("run activity actions: %w", err)
	}

	unlock := s.locks.Lock(msg.ID)
	defer unlock()

	fresh, err := s.get(ctx, msg.ID)
	if err != nil {
		return message.Message{}, err
	}
	if fresh.Flags.Processed {
		return fresh, nil
	}
	fresh.Flags.Processed = true
	return s.update(ctx, fresh)
}

// claimPending reloads the message under its lock and claims its actions
// unless they already ran or are running.
func (s *Service) claimPending(ctx context.Context, messageID string) (func(), bool, message.Message, error) {
	unlock := s.locks.Lock(messageID)
	defer unlock()

	current, err := s.get(ctx, messageID)
	if err != nil {
		return nil, false, message.Message{}, err
	}
	if current.Flags.Processed {
		return nil, false, current, nil
	}
	release, ok := s.pending.tryClaim(messageID)
	return release, ok, current, nil
}

// waitForAnimation blocks until the message stops animating or the
// animation timeout passes; a timeout proceeds with the latest message.
func (s *Service) waitForAnimation(ctx context.Context, messageID string) (message.Message, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.policy.AnimationTimeout)
	defer cancel()

	var waitErr error
	if s.animator != nil {
		waitErr = s.animator.WaitForAnimation(waitCtx, messageID)
	} else {
		waitErr = s.pollAnimation(waitCtx, messageID)
	}
	switch {
	case waitErr == nil:
	case errors.Is(waitErr, context.DeadlineExceeded) && ctx.Err() == nil:
		s.logger.WarnContext(ctx, "animation wait timed out", "timeout", s.policy.AnimationTimeout)
	default:
		return message.Message{}, waitErr
	}
	return s.get(ctx, messageID)
}

func (s *Service) pollAnimation(ctx context.Context, messageID string) error {
	ticker := time.NewTicker(timeouts.AnimationPoll)
	defer ticker.Stop()
	for {
		msg, err := s.get(ctx, messageID)
		if err != nil {
			return err
		}
		if !msg.Animating {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// enforceDual adds companion d20 outcomes and persists flags and rolls in
// one update.
func (s *Service) enforceDual(ctx context.Context, messageID string) (message.Message, error) {
	unlock := s.locks.Lock(messageID)
	defer unlock()

	msg, err := s.get(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	dual, changed, err := lifecycle.EnsureDualRoll(ctx, msg, guardedRoller{s.roller})
	if err != nil {
		return message.Message{}, err
	}
	if !changed {
		return msg, nil
	}
	return s.update(ctx, dual)
}

// stampEnricher marks an inline damage roll for damage rendering.
func (s *Service) stampEnricher(ctx context.Context, messageID string) (message.Message, error) {
	unlock := s.locks.Lock(messageID)
	defer unlock()

	msg, err := s.get(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	critical := len(msg.Rolls) > 0 && msg.Rolls[0].Critical
	if msg.Flags.RenderDamage && msg.Flags.IsCritical == critical {
		return msg, nil
	}
	msg.Flags.RenderDamage = true
	msg.Flags.IsCritical = critical
	return s.update(ctx, msg)
}

var errParentMissing = errors.New("parent message missing")

// mergeIntoParent folds child into its originating message. Both ids are
// locked and both messages fetched again; the parent update and the child
// deletion commit together.
func (s *Service) mergeIntoParent(ctx context.Context, child message.Message, childType message.RollType) (message.Message, error) {
	parentID := child.OriginatingMessageID
	unlock := s.locks.Lock(child.ID, parentID)
	defer unlock()

	parent, err := s.get(ctx, parentID)
	if errors.Is(err, storage.ErrNotFound) {
		return message.Message{}, errParentMissing
	}
	if err != nil {
		return message.Message{}, err
	}
	child, err = s.get(ctx, child.ID)
	if err != nil {
		return message.Message{}, err
	}
	if !lifecycle.IsStandaloneSubRoll(child) {
		return message.Message{}, fmt.Errorf("%w: %s", merge.ErrNotMergeable, child.ID)
	}

	result, err := merge.Merge(parent, child, childType)
	if err != nil {
		return message.Message{}, err
	}
	merged, err := s.store.MergeMessage(ctx, result.Parent, child.ID)
	if err != nil {
		return message.Message{}, persistence(err)
	}
	s.logger.InfoContext(ctx, "sub-roll merged", "parent_id", parentID, "roll_type", childType)
	return merged, nil
}
