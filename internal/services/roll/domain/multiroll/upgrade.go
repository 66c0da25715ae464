// Package multiroll retroactively converts a normal d20 roll into an
// advantage or disadvantage roll.
package multiroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/quickroll/internal/core/dice"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/lifecycle"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
)

var (
	// ErrAlreadyMultiRoll indicates the message already carries a multiroll.
	ErrAlreadyMultiRoll = errors.New("message is already a multiroll")
	// ErrNoD20Roll indicates the message has no die-based d20 roll to upgrade.
	ErrNoD20Roll = errors.New("message has no d20 roll")
	// ErrInvalidMode indicates a target mode other than advantage or disadvantage.
	ErrInvalidMode = errors.New("multiroll mode must be advantage or disadvantage")
)

const (
	keepHighest = "kh"
	keepLowest  = "kl"
)

// Upgrade returns a copy of msg whose first d20 roll is evaluated twice under
// mode. One fresh d20 is requested; the losing candidate is kept as an
// inactive result. Ties keep the original outcome active.
func Upgrade(ctx context.Context, msg message.Message, mode message.AdvantageMode, roller dice.Roller) (message.Message, error) {
	if mode != message.ModeAdvantage && mode != message.ModeDisadvantage {
		return msg, fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}
	if lifecycle.IsMultiRoll(msg) {
		return msg, ErrAlreadyMultiRoll
	}
	idx := msg.FirstRollOfKind(message.KindD20)
	if idx < 0 {
		return msg, ErrNoD20Roll
	}
	term := lifecycle.PrimaryD20(msg.Rolls[idx])
	if term < 0 || len(msg.Rolls[idx].Terms[term].Results) == 0 {
		return msg, ErrNoD20Roll
	}
	// A d20 behind a leading damage roll can already carry a kept pair.
	if msg.Rolls[idx].AdvantageMode != message.ModeNormal || len(msg.Rolls[idx].Terms[term].Results) > 1 {
		return msg, ErrAlreadyMultiRoll
	}

	values, err := roller.Roll(ctx, 20, 1)
	if err != nil {
		return msg, fmt.Errorf("roll multiroll candidate: %w", err)
	}
	if len(values) != 1 {
		return msg, fmt.Errorf("roll multiroll candidate: got %d outcomes, want 1", len(values))
	}

	out := msg.Clone()
	roll := &out.Rolls[idx]
	die := &roll.Terms[term]
	original := firstActive(die.Results)
	candidate := message.DieResult{Value: values[0], Active: true}

	switch mode {
	case message.ModeAdvantage:
		die.Modifiers = keepHighest
		if candidate.Value > die.Results[original].Value {
			die.Results[original].Active = false
		} else {
			candidate.Active = false
		}
	case message.ModeDisadvantage:
		die.Modifiers = keepLowest
		if candidate.Value < die.Results[original].Value {
			die.Results[original].Active = false
		} else {
			candidate.Active = false
		}
	}
	die.Results = append(die.Results, candidate)
	die.Count = len(die.Results)
	roll.AdvantageMode = mode
	roll.Recompute()

	out.Flags.Advantage = mode == message.ModeAdvantage
	out.Flags.Disadvantage = mode == message.ModeDisadvantage
	return out, nil
}

// Effective returns the active outcome of the first d20 roll, or 0.
func Effective(msg message.Message) int {
	idx := msg.FirstRollOfKind(message.KindD20)
	if idx < 0 {
		return 0
	}
	term := lifecycle.PrimaryD20(msg.Rolls[idx])
	if term < 0 {
		return 0
	}
	results := msg.Rolls[idx].Terms[term].Results
	if i := firstActive(results); i < len(results) && results[i].Active {
		return results[i].Value
	}
	return 0
}

func firstActive(results []message.DieResult) int {
	for i, r := range results {
		if r.Active {
			return i
		}
	}
	return 0
}

// FlavorSuffix returns the label appended to the message flavor, or "" when
// the roll type already renders its mode elsewhere.
func FlavorSuffix(rollType message.RollType, mode message.AdvantageMode) string {
	switch rollType {
	case message.RollTypeAttack, message.RollTypeTool:
		return ""
	}
	switch mode {
	case message.ModeAdvantage:
		return "Advantage"
	case message.ModeDisadvantage:
		return "Disadvantage"
	default:
		return ""
	}
}
