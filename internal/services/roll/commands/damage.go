package commands

import (
	"context"
	"fmt"

	"github.com/louisbranch/quickroll/internal/services/roll/domain/damage"
)

// DamageOutcome reports an apply button press.
type DamageOutcome struct {
	Damages []damage.Damage
	Report  damage.Report
	Notice  string
}

// ApplyDamage applies the damage rolls of a message to every target as one
// unordered batch. Targets that fail are listed in the report; targets that
// succeeded stay applied.
func (s *Service) ApplyDamage(ctx context.Context, messageID string, req damage.Request) (_ DamageOutcome, err error) {
	ctx, span := s.start(ctx, "apply_damage", messageID)
	defer func() { finish(span, err) }()

	if s.actors == nil {
		return DamageOutcome{}, fail(messageID, "apply damage", fmt.Errorf("%w: actors", ErrCollaboratorUnavailable))
	}
	msg, err := s.get(ctx, messageID)
	if err != nil {
		return DamageOutcome{}, fail(messageID, "apply damage", err)
	}
	damages, err := damage.Collect(msg, req.Part, req.Multiplier)
	if err != nil {
		return DamageOutcome{}, fail(messageID, "apply damage", err)
	}

	report, applyErr := damage.Apply(ctx, s.actors, damages, req)
	if applyErr != nil && len(report.Applied) == 0 && len(report.Failed) == 0 {
		return DamageOutcome{}, fail(messageID, "apply damage", applyErr)
	}
	out := DamageOutcome{Damages: damages, Report: report}
	if applyErr != nil {
		s.logger.WarnContext(ctx, "damage partially applied", "applied", len(report.Applied), "failed", len(report.Failed), "error", applyErr)
		out.Notice = s.notify(ctx, messageID, LevelWarning, "damage.partial", len(report.Applied), len(req.Targets))
		return out, nil
	}
	out.Notice = s.notify(ctx, messageID, LevelInfo, "damage.applied", damage.Sum(damages), len(report.Applied))
	return out, nil
}

// BreakConcentration ends concentration for the actor that spoke a
// concentration check.
func (s *Service) BreakConcentration(ctx context.Context, messageID string) (err error) {
	ctx, span := s.start(ctx, "break_concentration", messageID)
	defer func() { finish(span, err) }()

	if s.actors == nil {
		return fail(messageID, "break concentration", fmt.Errorf("%w: actors", ErrCollaboratorUnavailable))
	}
	msg, err := s.get(ctx, messageID)
	if err != nil {
		return fail(messageID, "break concentration", err)
	}
	if !msg.Flags.IsConcentration {
		return fail(messageID, "break concentration", fmt.Errorf("%w: not a concentration check", errInvalidRequest))
	}
	if msg.Speaker.Token == "" && msg.Speaker.Actor == "" {
		return fail(messageID, "break concentration", fmt.Errorf("%w: message has no speaker", errInvalidRequest))
	}
	if err := s.actors.BreakConcentration(ctx, msg.Speaker); err != nil {
		return fail(messageID, "break concentration", err)
	}
	return nil
}
