package lifecycle

import (
	"context"
	"fmt"

	"github.com/louisbranch/quickroll/internal/core/dice"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
)

const d20Faces = 20

// EnsureDualRoll returns a copy of msg in which every normal single-outcome
// d20 roll carries a second, inactive companion outcome, and reports whether
// the dual flag is now set. The input message is never modified.
func EnsureDualRoll(ctx context.Context, msg message.Message, roller dice.Roller) (message.Message, bool, error) {
	if IsMultiRoll(msg) {
		return msg, false, nil
	}
	out := msg.Clone()
	dual := false
	for i := range out.Rolls {
		switch out.Rolls[i].Kind {
		case message.KindD20:
			dual = true
			if err := addCompanion(ctx, &out.Rolls[i], roller); err != nil {
				return msg, false, err
			}
		case message.KindDamage, message.KindBasic:
		}
	}
	if !dual {
		return msg, false, nil
	}
	out.Flags.Dual = true
	return out, true, nil
}

func addCompanion(ctx context.Context, roll *message.Roll, roller dice.Roller) error {
	term := PrimaryD20(*roll)
	if term < 0 || roll.AdvantageMode != message.ModeNormal || len(roll.Terms[term].Results) != 1 {
		return nil
	}
	values, err := roller.Roll(ctx, d20Faces, 1)
	if err != nil {
		return fmt.Errorf("roll companion d20: %w", err)
	}
	if len(values) != 1 {
		return fmt.Errorf("roll companion d20: got %d outcomes, want 1", len(values))
	}
	roll.Terms[term].Results = append(roll.Terms[term].Results, message.DieResult{Value: values[0]})
	roll.Terms[term].Count = len(roll.Terms[term].Results)
	roll.Recompute()
	return nil
}

// PrimaryD20 returns the index of the first d20 die term of roll, or -1.
func PrimaryD20(roll message.Roll) int {
	for _, i := range roll.DieTerms() {
		if roll.Terms[i].Faces == d20Faces {
			return i
		}
	}
	return -1
}
