package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/quickroll/internal/platform/requestctx"
	"github.com/louisbranch/quickroll/internal/services/roll/audit"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/reroll"
	"github.com/louisbranch/quickroll/internal/services/roll/storage"
)

// RerollOutcome reports a completed reroll.
type RerollOutcome struct {
	Outcome
	Changes []reroll.Change
	Dropped []reroll.Dropped
	// Audit is the stored audit record, or nil when the write failed.
	Audit  *storage.AuditRecord
	Notice string
}

// Reroll rerolls the selected damage dice of a message under policy and
// writes an audit record of the changes. The audit write is best effort and
// never undoes the reroll.
func (s *Service) Reroll(ctx context.Context, messageID string, selection reroll.Selection, policy message.KeepPolicy) (_ RerollOutcome, err error) {
	ctx, span := s.start(ctx, "reroll", messageID)
	defer func() { finish(span, err) }()

	if policy == "" {
		policy = message.KeepNew
	}
	if !policy.Valid() {
		return RerollOutcome{}, fail(messageID, "reroll", fmt.Errorf("%w: %q", reroll.ErrInvalidPolicy, policy))
	}

	result, err := func() (reroll.Result, error) {
		unlock := s.locks.Lock(messageID)
		defer unlock()

		msg, err := s.get(ctx, messageID)
		if err != nil {
			return reroll.Result{}, err
		}
		if !msg.HasRollOfKind(message.KindDamage) {
			s.notify(ctx, messageID, LevelWarning, "reroll.no_dice_found")
			return reroll.Result{}, fmt.Errorf("%w: %s", errNoDamage, messageID)
		}
		if len(selection) == 0 {
			s.notify(ctx, messageID, LevelWarning, "reroll.no_dice_selected")
			return reroll.Result{}, reroll.ErrNoDiceSelected
		}

		result, err := reroll.Reroll(ctx, msg, selection, policy, guardedRoller{s.roller})
		for _, dropped := range result.Dropped {
			s.logger.WarnContext(ctx, "reroll selection dropped", "ref", dropped.Ref.String(), "reason", dropped.Reason)
		}
		switch {
		case errors.Is(err, reroll.ErrNoDiceSelected):
			s.notify(ctx, messageID, LevelWarning, "reroll.no_dice_selected")
			return reroll.Result{}, err
		case err != nil:
			s.notify(ctx, messageID, LevelError, "reroll.error")
			return reroll.Result{}, err
		}

		updated, err := s.update(ctx, result.Message)
		if err != nil {
			return reroll.Result{}, err
		}
		result.Message = updated
		return result, nil
	}()
	if err != nil {
		return RerollOutcome{}, fail(messageID, "reroll", err)
	}

	out := RerollOutcome{
		Outcome: s.outcome(ctx, result.Message),
		Changes: result.Changes,
		Dropped: result.Dropped,
	}
	rec := audit.Build(messageID, requestctx.UserIDFromContext(ctx), policy, result.Changes)
	stored, auditErr := s.audit.Emit(ctx, rec)
	if auditErr != nil {
		s.logger.ErrorContext(ctx, "write reroll audit record", "error", auditErr)
	} else {
		out.Audit = &stored
	}
	out.Notice = s.notify(ctx, messageID, LevelInfo, "reroll.success", len(result.Changes))
	return out, nil
}

// RerollCandidates lists the active damage dice of a message grouped for a
// selection dialog.
func (s *Service) RerollCandidates(ctx context.Context, messageID string) ([]reroll.CandidateGroup, error) {
	msg, err := s.get(ctx, messageID)
	if err != nil {
		return nil, fail(messageID, "list reroll candidates", err)
	}
	groups := reroll.Candidates(msg)
	if len(groups) == 0 {
		s.notify(ctx, messageID, LevelWarning, "reroll.no_dice_found")
		return nil, fail(messageID, "list reroll candidates", fmt.Errorf("%w: %s", errNoDamage, messageID))
	}
	return groups, nil
}

// ListAuditRecords returns the reroll audit records of a message, oldest first.
func (s *Service) ListAuditRecords(ctx context.Context, messageID string) ([]storage.AuditRecord, error) {
	records, err := s.store.ListAuditRecords(ctx, messageID)
	if err != nil {
		return nil, fail(messageID, "list audit records", persistence(err))
	}
	return records, nil
}
