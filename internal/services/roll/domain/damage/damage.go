// Package damage turns the damage rolls of a message into damage packets and
// applies them to targets as one unordered batch.
package damage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
)

// TypeHealing is the damage type used for negative multipliers.
const TypeHealing = "healing"

// AllParts selects every damage roll of a message.
const AllParts = -1

var (
	// ErrNoDamageRolls indicates the message carries no damage rolls.
	ErrNoDamageRolls = errors.New("message has no damage rolls")
	// ErrNoTargets indicates an application request without targets.
	ErrNoTargets = errors.New("no targets to apply damage to")
	// ErrPartOutOfRange indicates a part index past the damage rolls.
	ErrPartOutOfRange = errors.New("damage part out of range")
)

// Damage is one packet delivered to a target.
type Damage struct {
	Value      int      `json:"value"`
	Type       string   `json:"type"`
	Properties []string `json:"properties,omitempty"`
}

// Actors applies hit point changes to target actors.
type Actors interface {
	ApplyDamage(ctx context.Context, target string, damages []Damage, multiplier float64) error
	ApplyTempHP(ctx context.Context, target string, amount int) error
	// BreakConcentration resolves the speaker to an actor, preferring the
	// token when one is set.
	BreakConcentration(ctx context.Context, speaker message.Speaker) error
}

// Request describes one apply button press.
type Request struct {
	Targets []string
	// Multiplier scales the damage; a negative multiplier heals.
	Multiplier float64
	// Part selects one damage roll by its position among damage rolls, or
	// AllParts.
	Part   int
	TempHP bool
}

// Collect builds the damage packets for part of msg. Properties always come
// from the first damage roll.
func Collect(msg message.Message, part int, multiplier float64) ([]Damage, error) {
	indices := msg.RollsOfKind(message.KindDamage)
	if len(indices) == 0 {
		return nil, ErrNoDamageRolls
	}
	if part != AllParts {
		if part < 0 || part >= len(indices) {
			return nil, fmt.Errorf("%w: %d of %d", ErrPartOutOfRange, part, len(indices))
		}
		indices = indices[part : part+1]
	}
	properties := msg.Rolls[msg.FirstRollOfKind(message.KindDamage)].Properties

	out := make([]Damage, 0, len(indices))
	for _, idx := range indices {
		roll := msg.Rolls[idx]
		kind := roll.DamageType
		if multiplier < 0 {
			kind = TypeHealing
		}
		out = append(out, Damage{
			Value:      roll.Total,
			Type:       kind,
			Properties: append([]string(nil), properties...),
		})
	}
	return out, nil
}

// Sum returns the total value of the packets.
func Sum(damages []Damage) int {
	total := 0
	for _, d := range damages {
		total += d.Value
	}
	return total
}

// Report lists the outcome per target.
type Report struct {
	Applied []string
	Failed  map[string]error
}

// Apply delivers damages to every target concurrently. There is no ordering
// between targets and no rollback: targets that succeeded stay applied when
// others fail. The returned error joins every per-target failure.
func Apply(ctx context.Context, actors Actors, damages []Damage, req Request) (Report, error) {
	if len(req.Targets) == 0 {
		return Report{}, ErrNoTargets
	}
	multiplier := math.Abs(req.Multiplier)
	errs := make([]error, len(req.Targets))

	// Every target runs to completion; Wait only surfaces the first failure,
	// so each goroutine also records its own.
	g := errgroup.Group{}
	for i, target := range req.Targets {
		g.Go(func() error {
			var err error
			if req.TempHP {
				err = actors.ApplyTempHP(ctx, target, Sum(damages))
			} else {
				err = actors.ApplyDamage(ctx, target, damages, multiplier)
			}
			if err != nil {
				errs[i] = err
				return fmt.Errorf("target %s: %w", target, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err == nil {
		applied := slices.Clone(req.Targets)
		sort.Strings(applied)
		return Report{Applied: applied}, nil
	}

	report := Report{Failed: make(map[string]error)}
	var joined []error
	for i, target := range req.Targets {
		if errs[i] != nil {
			report.Failed[target] = errs[i]
			joined = append(joined, fmt.Errorf("target %s: %w", target, errs[i]))
			continue
		}
		report.Applied = append(report.Applied, target)
	}
	sort.Strings(report.Applied)
	return report, errors.Join(joined...)
}
