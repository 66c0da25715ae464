// Package critical promotes resolved damage rolls to their critical-hit
// variant while preserving every outcome already shown to players.
package critical

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
)

var (
	// ErrAlreadyCritical indicates the message was already promoted.
	ErrAlreadyCritical = errors.New("message is already critical")
	// ErrNoDamageRolls indicates there is nothing to promote.
	ErrNoDamageRolls = errors.New("message has no damage rolls")
	// ErrCriticalShapeMismatch indicates the critical rolls do not line up
	// with the base rolls term for term.
	ErrCriticalShapeMismatch = errors.New("critical roll shape does not match base roll")
)

// Source derives the canonical critical rolls for a message's damage rolls.
// It returns exactly one roll per damage roll, in message order, with every
// die freshly rolled.
type Source interface {
	CriticalRolls(ctx context.Context, msg message.Message) ([]message.Roll, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, msg message.Message) ([]message.Roll, error)

// CriticalRolls implements Source.
func (f SourceFunc) CriticalRolls(ctx context.Context, msg message.Message) ([]message.Roll, error) {
	return f(ctx, msg)
}

// Upgrade returns a copy of msg with each damage roll replaced by its
// critical variant. Base die outcomes are spliced over the head of the
// matching critical term, so only the extra critical dice keep fresh values.
func Upgrade(ctx context.Context, msg message.Message, source Source) (message.Message, error) {
	if msg.Flags.IsCritical {
		return msg, ErrAlreadyCritical
	}
	indices := msg.RollsOfKind(message.KindDamage)
	if len(indices) == 0 {
		return msg, ErrNoDamageRolls
	}
	crits, err := source.CriticalRolls(ctx, msg)
	if err != nil {
		return msg, fmt.Errorf("derive critical rolls: %w", err)
	}
	if len(crits) != len(indices) {
		return msg, fmt.Errorf("%w: got %d critical rolls for %d damage rolls", ErrCriticalShapeMismatch, len(crits), len(indices))
	}

	out := msg.Clone()
	for i, idx := range indices {
		promoted, err := splice(out.Rolls[idx], crits[i].Clone())
		if err != nil {
			return msg, fmt.Errorf("damage roll %d: %w", i, err)
		}
		out.Rolls[idx] = promoted
	}
	out.Flags.IsCritical = true
	return out, nil
}

func splice(base, crit message.Roll) (message.Roll, error) {
	if crit.Kind != message.KindDamage {
		return message.Roll{}, fmt.Errorf("%w: critical roll kind %q", ErrCriticalShapeMismatch, crit.Kind)
	}
	for _, j := range base.DieTerms() {
		if j >= len(crit.Terms) || crit.Terms[j].Kind != message.TermDie {
			return message.Roll{}, fmt.Errorf("%w: term %d missing", ErrCriticalShapeMismatch, j)
		}
		baseTerm, critTerm := base.Terms[j], &crit.Terms[j]
		if critTerm.Faces != baseTerm.Faces || len(critTerm.Results) < len(baseTerm.Results) {
			return message.Roll{}, fmt.Errorf("%w: term %d is %dd%d, base is %dd%d",
				ErrCriticalShapeMismatch, j, len(critTerm.Results), critTerm.Faces, len(baseTerm.Results), baseTerm.Faces)
		}
		copy(critTerm.Results, baseTerm.Results)
		critTerm.Count = len(critTerm.Results)
	}
	crit.Critical = true
	if crit.DamageType == "" {
		crit.DamageType = base.DamageType
	}
	if crit.Properties == nil && base.Properties != nil {
		crit.Properties = append([]string(nil), base.Properties...)
	}
	crit.Recompute()
	return crit, nil
}
