package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/quickroll/internal/core/dice"
	apperrors "github.com/louisbranch/quickroll/internal/platform/errors"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/critical"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/damage"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/lifecycle"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/merge"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/multiroll"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/reroll"
	"github.com/louisbranch/quickroll/internal/services/roll/storage"
)

// ErrCollaboratorUnavailable reports that a host collaborator a command
// needs is not wired. Collaborators return it for work they cannot perform.
var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

var (
	errGeneration            = errors.New("fresh outcome generation failed")
	errPersistence           = errors.New("persistence failed")
	errConfirmationCancelled = errors.New("confirmation cancelled")
	errInvalidRequest        = errors.New("invalid request")
	errNoDamage              = errors.New("message has no damage rolls")
)

// codeFor maps a command failure to its domain code.
func codeFor(err error) apperrors.Code {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.CodeNotFound
	case errors.Is(err, storage.ErrVersionConflict):
		return apperrors.CodeRollVersionConflict
	case errors.Is(err, errConfirmationCancelled):
		return apperrors.CodeRollConfirmationCancelled
	case errors.Is(err, ErrCollaboratorUnavailable):
		return apperrors.CodeRollCollaboratorUnavailable
	case errors.Is(err, multiroll.ErrAlreadyMultiRoll):
		return apperrors.CodeRollAlreadyMultiRoll
	case errors.Is(err, critical.ErrAlreadyCritical):
		return apperrors.CodeRollAlreadyCritical
	case errors.Is(err, critical.ErrNoDamageRolls), errors.Is(err, damage.ErrNoDamageRolls), errors.Is(err, errNoDamage):
		return apperrors.CodeRollNoDamageRolls
	case errors.Is(err, reroll.ErrNoDiceSelected):
		return apperrors.CodeRollNoDiceSelected
	case errors.Is(err, reroll.ErrGeneration), errors.Is(err, errGeneration):
		return apperrors.CodeRollGenerationFailed
	case errors.Is(err, errPersistence), errors.Is(err, storage.ErrAlreadyExists):
		return apperrors.CodeRollPersistenceFailed
	case errors.Is(err, lifecycle.ErrRollKindMismatch),
		errors.Is(err, merge.ErrNotMergeable),
		errors.Is(err, merge.ErrParentMismatch),
		errors.Is(err, multiroll.ErrNoD20Roll),
		errors.Is(err, multiroll.ErrInvalidMode),
		errors.Is(err, critical.ErrCriticalShapeMismatch),
		errors.Is(err, reroll.ErrInvalidPolicy),
		errors.Is(err, reroll.ErrInvalidRef),
		errors.Is(err, damage.ErrNoTargets),
		errors.Is(err, damage.ErrPartOutOfRange),
		errors.Is(err, errInvalidRequest):
		return apperrors.CodeRollValidationFailed
	default:
		return apperrors.CodeUnknown
	}
}

// fail converts err into a domain error carrying the message id.
func fail(messageID, action string, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.New(codeFor(err), action, apperrors.WithCause(err), apperrors.WithMeta("MessageID", messageID))
}

// guardedRoller tags every roller failure so it maps to a generation error.
type guardedRoller struct {
	roller dice.Roller
}

func (g guardedRoller) Roll(ctx context.Context, faces, count int) ([]int, error) {
	if g.roller == nil {
		return nil, fmt.Errorf("%w: no roller configured", errGeneration)
	}
	values, err := g.roller.Roll(ctx, faces, count)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errGeneration, err)
	}
	return values, nil
}

// guardedSource tags critical source failures as generation errors.
type guardedSource struct {
	source critical.Source
}

func (g guardedSource) CriticalRolls(ctx context.Context, msg message.Message) ([]message.Roll, error) {
	rolls, err := g.source.CriticalRolls(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errGeneration, err)
	}
	return rolls, nil
}
