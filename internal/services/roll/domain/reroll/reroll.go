// Package reroll rerolls individually selected die outcomes of damage rolls
// under a keep policy, recording provenance on every touched result.
//
// Dice are addressed by DieRef. Roll indexes the damage rolls of a message in
// message order, Term indexes the die terms of that roll and Die indexes the
// results of that term. No operation renumbers them.
package reroll

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/quickroll/internal/core/dice"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
)

var (
	// ErrNoDiceSelected indicates that no selected ref resolved to a die.
	ErrNoDiceSelected = errors.New("no dice selected")
	// ErrGeneration wraps a fresh-outcome failure; nothing was changed.
	ErrGeneration = errors.New("fresh outcome generation failed")
	// ErrInvalidPolicy indicates an unknown keep policy.
	ErrInvalidPolicy = errors.New("invalid keep policy")
	// ErrInvalidRef indicates a malformed die reference string.
	ErrInvalidRef = errors.New("invalid die reference")
)

// DieRef addresses one die result inside a message.
type DieRef struct {
	Roll int `json:"roll"`
	Term int `json:"term"`
	Die  int `json:"die"`
}

// String renders the ref as "roll:term:die".
func (r DieRef) String() string {
	return fmt.Sprintf("%d:%d:%d", r.Roll, r.Term, r.Die)
}

// ParseRef parses a "roll:term:die" reference.
func ParseRef(raw string) (DieRef, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 3 {
		return DieRef{}, fmt.Errorf("%w: %q", ErrInvalidRef, raw)
	}
	var values [3]int
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil || v < 0 {
			return DieRef{}, fmt.Errorf("%w: %q", ErrInvalidRef, raw)
		}
		values[i] = v
	}
	return DieRef{Roll: values[0], Term: values[1], Die: values[2]}, nil
}

// Selection is an ordered list of targeted dice. Order decides which fresh
// outcome each die receives.
type Selection []DieRef

// ParsePolicy parses a keep policy name. Empty means KeepNew.
func ParsePolicy(raw string) (message.KeepPolicy, error) {
	switch policy := message.KeepPolicy(strings.ToLower(strings.TrimSpace(raw))); policy {
	case "":
		return message.KeepNew, nil
	case message.KeepNew, message.KeepBetter:
		return policy, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, raw)
	}
}

// Change records what happened to one rerolled die.
type Change struct {
	Ref        DieRef             `json:"ref"`
	Faces      int                `json:"faces"`
	OldValue   int                `json:"old_value"`
	NewValue   int                `json:"new_value"`
	FinalValue int                `json:"final_value"`
	Policy     message.KeepPolicy `json:"policy"`
}

// Delta is FinalValue minus OldValue.
func (c Change) Delta() int { return c.FinalValue - c.OldValue }

// Dropped is a selected ref that could not be resolved.
type Dropped struct {
	Ref    DieRef `json:"ref"`
	Reason string `json:"reason"`
}

// Result is the outcome of a reroll.
type Result struct {
	Message message.Message
	Changes []Change
	Dropped []Dropped
}

// Touched returns the refs that were rerolled, in selection order.
func (r Result) Touched() []DieRef {
	out := make([]DieRef, len(r.Changes))
	for i, c := range r.Changes {
		out[i] = c.Ref
	}
	return out
}

type group struct {
	rollIdx int
	termIdx int
	faces   int
	refs    []DieRef
}

// Reroll applies selection to a copy of msg. Every group of refs sharing a
// roll and term is served by one roller request; outcomes are paired with
// refs in selection order. A roller failure aborts with ErrGeneration and the
// input message is returned unchanged.
func Reroll(ctx context.Context, msg message.Message, selection Selection, policy message.KeepPolicy, roller dice.Roller) (Result, error) {
	if !policy.Valid() {
		return Result{Message: msg}, fmt.Errorf("%w: %q", ErrInvalidPolicy, policy)
	}

	groups, dropped := resolve(msg, selection)
	if len(groups) == 0 {
		return Result{Message: msg, Dropped: dropped}, ErrNoDiceSelected
	}

	outcomes := make([][]int, len(groups))
	for i, g := range groups {
		values, err := roller.Roll(ctx, g.faces, len(g.refs))
		if err != nil {
			return Result{Message: msg, Dropped: dropped}, fmt.Errorf("%w: %dd%d: %v", ErrGeneration, len(g.refs), g.faces, err)
		}
		if len(values) != len(g.refs) {
			return Result{Message: msg, Dropped: dropped}, fmt.Errorf("%w: got %d outcomes, want %d", ErrGeneration, len(values), len(g.refs))
		}
		outcomes[i] = values
	}

	out := msg.Clone()
	changes := make(map[DieRef]Change)
	mutated := make(map[int]bool)
	for i, g := range groups {
		term := &out.Rolls[g.rollIdx].Terms[g.termIdx]
		for k, ref := range g.refs {
			result := &term.Results[ref.Die]
			old, fresh := result.Value, outcomes[i][k]
			final := fresh
			if policy == message.KeepBetter {
				final = max(old, fresh)
			}
			*result = message.DieResult{
				Value:       final,
				Active:      true,
				WasRerolled: true,
				OldValue:    old,
				NewValue:    fresh,
				KeepPolicy:  policy,
			}
			changes[ref] = Change{Ref: ref, Faces: term.Faces, OldValue: old, NewValue: fresh, FinalValue: final, Policy: policy}
		}
		mutated[g.rollIdx] = true
	}
	for idx := range mutated {
		out.Rolls[idx].Recompute()
	}

	res := Result{Message: out, Dropped: dropped}
	for _, ref := range selection {
		if c, ok := changes[ref]; ok {
			res.Changes = append(res.Changes, c)
			delete(changes, ref)
		}
	}
	return res, nil
}

// resolve validates refs against msg and groups them by (roll, term) in
// first-seen order.
func resolve(msg message.Message, selection Selection) ([]group, []Dropped) {
	damage := msg.RollsOfKind(message.KindDamage)
	var (
		groups  []group
		dropped []Dropped
	)
	index := make(map[[2]int]int)
	seen := make(map[DieRef]bool)
	for _, ref := range selection {
		reason := ""
		var rollIdx, termIdx int
		switch {
		case seen[ref]:
			reason = "duplicate"
		case ref.Roll < 0 || ref.Roll >= len(damage):
			reason = "no such damage roll"
		default:
			rollIdx = damage[ref.Roll]
			terms := msg.Rolls[rollIdx].DieTerms()
			if ref.Term < 0 || ref.Term >= len(terms) {
				reason = "no such die term"
				break
			}
			termIdx = terms[ref.Term]
			results := msg.Rolls[rollIdx].Terms[termIdx].Results
			if ref.Die < 0 || ref.Die >= len(results) {
				reason = "no such die"
			} else if !results[ref.Die].Active {
				reason = "die is inactive"
			}
		}
		if reason != "" {
			dropped = append(dropped, Dropped{Ref: ref, Reason: reason})
			continue
		}
		seen[ref] = true
		key := [2]int{rollIdx, termIdx}
		gi, ok := index[key]
		if !ok {
			gi = len(groups)
			index[key] = gi
			groups = append(groups, group{rollIdx: rollIdx, termIdx: termIdx, faces: msg.Rolls[rollIdx].Terms[termIdx].Faces})
		}
		groups[gi].refs = append(groups[gi].refs, ref)
	}
	return groups, dropped
}
