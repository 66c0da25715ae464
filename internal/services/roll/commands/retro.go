package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/quickroll/internal/platform/requestctx"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/critical"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/lifecycle"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/multiroll"
)

// RollDamage handles the manual damage button: the manual step is closed,
// damage rendering is switched on and the damage action runs. The damage
// sub-roll it creates merges back through Process.
func (s *Service) RollDamage(ctx context.Context, messageID string) (_ Outcome, err error) {
	ctx, span := s.start(ctx, "roll_damage", messageID)
	defer func() { finish(span, err) }()

	if s.actions == nil {
		return Outcome{}, fail(messageID, "roll damage", fmt.Errorf("%w: activity actions", ErrCollaboratorUnavailable))
	}

	var before message.Flags
	msg, err := func() (message.Message, error) {
		unlock := s.locks.Lock(messageID)
		defer unlock()

		msg, err := s.get(ctx, messageID)
		if err != nil {
			return message.Message{}, err
		}
		if lifecycle.Classify(msg) != message.RollTypeActivity {
			return message.Message{}, fmt.Errorf("%w: manual damage needs an activity message", errInvalidRequest)
		}
		before = msg.Flags
		msg.Flags.ManualDamage = false
		msg.Flags.RenderDamage = true
		return s.update(ctx, msg)
	}()
	if err != nil {
		return Outcome{}, fail(messageID, "roll damage", err)
	}

	if err := s.actions.RunActivityAction(ctx, msg, message.RollTypeDamage); err != nil {
		if errors.Is(err, ErrCollaboratorUnavailable) {
			s.reopenManualDamage(ctx, messageID, before)
			return Outcome{}, fail(messageID, "roll damage", err)
		}
		return Outcome{}, fail(messageID, "roll damage", fmt.Errorf("%w: %w", errGeneration, err))
	}
	msg, err = s.get(ctx, messageID)
	if err != nil {
		return Outcome{}, fail(messageID, "roll damage", err)
	}
	return s.outcome(ctx, msg), nil
}

// reopenManualDamage puts the manual damage button back when the damage
// action could not run at all.
func (s *Service) reopenManualDamage(ctx context.Context, messageID string, before message.Flags) {
	unlock := s.locks.Lock(messageID)
	defer unlock()

	msg, err := s.get(ctx, messageID)
	if err == nil {
		msg.Flags.ManualDamage = before.ManualDamage
		msg.Flags.RenderDamage = before.RenderDamage
		_, err = s.update(ctx, msg)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "manual damage left closed", "error", err)
	}
}

// RetroMultiRoll turns the first d20 roll of a message into an advantage or
// disadvantage roll. Declining the confirmation leaves the message as it was.
func (s *Service) RetroMultiRoll(ctx context.Context, messageID string, mode message.AdvantageMode) (_ Outcome, err error) {
	ctx, span := s.start(ctx, "retro_multiroll", messageID)
	defer func() { finish(span, err) }()

	if mode != message.ModeAdvantage && mode != message.ModeDisadvantage {
		return Outcome{}, fail(messageID, "retro multiroll", fmt.Errorf("%w: %s", multiroll.ErrInvalidMode, mode))
	}
	current, err := s.get(ctx, messageID)
	if err != nil {
		return Outcome{}, fail(messageID, "retro multiroll", err)
	}
	if lifecycle.IsMultiRoll(current) {
		return Outcome{}, fail(messageID, "retro multiroll", multiroll.ErrAlreadyMultiRoll)
	}
	if s.policy.ConfirmRetroAdv {
		key := "confirm.retro_advantage"
		if mode == message.ModeDisadvantage {
			key = "confirm.retro_disadvantage"
		}
		if err := s.confirmPrompt(ctx, messageID, key); err != nil {
			return Outcome{}, fail(messageID, "retro multiroll", err)
		}
	}

	unlock := s.locks.Lock(messageID)
	defer unlock()

	msg, err := s.get(ctx, messageID)
	if err != nil {
		return Outcome{}, fail(messageID, "retro multiroll", err)
	}
	upgraded, err := multiroll.Upgrade(ctx, msg, mode, guardedRoller{s.roller})
	if err != nil {
		if errors.Is(err, errGeneration) {
			s.notify(ctx, messageID, LevelError, "roll.generation_failed")
		}
		return Outcome{}, fail(messageID, "retro multiroll", err)
	}
	if suffix := multiroll.FlavorSuffix(lifecycle.Classify(upgraded), mode); suffix != "" {
		label := s.text(ctx, "flavor."+strings.ToLower(suffix))
		upgraded.Flavor = strings.TrimSpace(upgraded.Flavor + " (" + label + ")")
	}
	updated, err := s.update(ctx, upgraded)
	if err != nil {
		return Outcome{}, fail(messageID, "retro multiroll", err)
	}
	s.logger.InfoContext(ctx, "retro multiroll applied", "mode", mode, "effective", multiroll.Effective(updated))
	return s.outcome(ctx, updated), nil
}

// RetroCritical promotes the damage rolls of a message to critical hits,
// keeping every outcome already shown.
func (s *Service) RetroCritical(ctx context.Context, messageID string) (_ Outcome, err error) {
	ctx, span := s.start(ctx, "retro_critical", messageID)
	defer func() { finish(span, err) }()

	current, err := s.get(ctx, messageID)
	if err != nil {
		return Outcome{}, fail(messageID, "retro critical", err)
	}
	if lifecycle.IsCritical(current) {
		return Outcome{}, fail(messageID, "retro critical", critical.ErrAlreadyCritical)
	}
	if !current.HasRollOfKind(message.KindDamage) {
		return Outcome{}, fail(messageID, "retro critical", critical.ErrNoDamageRolls)
	}
	if s.policy.ConfirmRetroCrit {
		if err := s.confirmPrompt(ctx, messageID, "confirm.retro_critical"); err != nil {
			return Outcome{}, fail(messageID, "retro critical", err)
		}
	}

	unlock := s.locks.Lock(messageID)
	defer unlock()

	msg, err := s.get(ctx, messageID)
	if err != nil {
		return Outcome{}, fail(messageID, "retro critical", err)
	}
	promoted, err := critical.Upgrade(ctx, msg, guardedSource{s.critical})
	if err != nil {
		if errors.Is(err, errGeneration) {
			s.notify(ctx, messageID, LevelError, "roll.generation_failed")
		}
		return Outcome{}, fail(messageID, "retro critical", err)
	}
	updated, err := s.update(ctx, promoted)
	if err != nil {
		return Outcome{}, fail(messageID, "retro critical", err)
	}
	s.logger.InfoContext(ctx, "retro critical applied", "damage_rolls", len(updated.RollsOfKind(message.KindDamage)))
	return s.outcome(ctx, updated), nil
}

// confirmPrompt asks the Confirmer; anything but a yes cancels the command.
func (s *Service) confirmPrompt(ctx context.Context, messageID, key string) error {
	ok, err := s.confirm.Confirm(ctx, Prompt{
		UserID:    requestctx.UserIDFromContext(ctx),
		MessageID: messageID,
		Text:      s.text(ctx, key),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", errConfirmationCancelled, err)
	}
	if !ok {
		return errConfirmationCancelled
	}
	return nil
}
