package critical

import (
	"context"
	"fmt"

	"github.com/louisbranch/quickroll/internal/core/dice"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
)

// FormulaSource derives critical rolls by doubling the dice of every die term
// and rolling all of them fresh. Static numbers are left unchanged.
type FormulaSource struct {
	Roller dice.Roller
}

// CriticalRolls implements Source.
func (s FormulaSource) CriticalRolls(ctx context.Context, msg message.Message) ([]message.Roll, error) {
	if s.Roller == nil {
		return nil, fmt.Errorf("critical formula source: roller is required")
	}
	var out []message.Roll
	for _, roll := range msg.Rolls {
		switch roll.Kind {
		case message.KindDamage:
			crit, err := s.double(ctx, roll)
			if err != nil {
				return nil, err
			}
			out = append(out, crit)
		case message.KindD20, message.KindBasic:
		}
	}
	return out, nil
}

func (s FormulaSource) double(ctx context.Context, roll message.Roll) (message.Roll, error) {
	crit := roll.Clone()
	for _, j := range crit.DieTerms() {
		term := &crit.Terms[j]
		count := term.Count
		if count <= 0 {
			count = len(term.Results)
		}
		values, err := s.Roller.Roll(ctx, term.Faces, count*2)
		if err != nil {
			return message.Roll{}, fmt.Errorf("roll critical %dd%d: %w", count*2, term.Faces, err)
		}
		term.Results = make([]message.DieResult, len(values))
		for i, v := range values {
			term.Results[i] = message.DieResult{Value: v, Active: true}
		}
		term.Count = len(values)
	}
	crit.Critical = true
	crit.Recompute()
	return crit, nil
}
