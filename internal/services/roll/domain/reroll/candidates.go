package reroll

import (
	"cmp"
	"slices"

	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
)

// Candidate is one active die outcome offered for rerolling.
type Candidate struct {
	Ref   DieRef `json:"ref"`
	Value int    `json:"value"`
	Max   bool   `json:"max,omitempty"`
	Min   bool   `json:"min,omitempty"`
}

// CandidateGroup is the set of active outcomes of one die term.
type CandidateGroup struct {
	Roll       int         `json:"roll"`
	Term       int         `json:"term"`
	Faces      int         `json:"faces"`
	Count      int         `json:"count"`
	DamageType string      `json:"damage_type,omitempty"`
	Results    []Candidate `json:"results"`
}

// Candidates lists the active outcomes of every damage die term, grouped by
// term. Groups are ordered by faces then damage type, untyped last; results
// are ordered from lowest to highest.
func Candidates(msg message.Message) []CandidateGroup {
	var groups []CandidateGroup
	for r, rollIdx := range msg.RollsOfKind(message.KindDamage) {
		roll := msg.Rolls[rollIdx]
		for t, termIdx := range roll.DieTerms() {
			term := roll.Terms[termIdx]
			g := CandidateGroup{Roll: r, Term: t, Faces: term.Faces, Count: term.Count, DamageType: damageType(roll, term)}
			for d, res := range term.Results {
				if !res.Active {
					continue
				}
				g.Results = append(g.Results, Candidate{
					Ref:   DieRef{Roll: r, Term: t, Die: d},
					Value: res.Value,
					Max:   res.Value == term.Faces,
					Min:   res.Value == 1,
				})
			}
			if len(g.Results) == 0 {
				continue
			}
			slices.SortStableFunc(g.Results, func(a, b Candidate) int { return cmp.Compare(a.Value, b.Value) })
			groups = append(groups, g)
		}
	}
	slices.SortStableFunc(groups, func(a, b CandidateGroup) int {
		if c := cmp.Compare(a.Faces, b.Faces); c != 0 {
			return c
		}
		switch {
		case a.DamageType == b.DamageType:
			return 0
		case a.DamageType == "":
			return 1
		case b.DamageType == "":
			return -1
		}
		return cmp.Compare(a.DamageType, b.DamageType)
	})
	return groups
}

func damageType(roll message.Roll, term message.Term) string {
	if roll.DamageType != "" {
		return roll.DamageType
	}
	return term.Flavor
}

// SelectOnes returns a selection of every active outcome showing a one, in
// message order.
func SelectOnes(msg message.Message) Selection {
	var sel Selection
	for r, rollIdx := range msg.RollsOfKind(message.KindDamage) {
		roll := msg.Rolls[rollIdx]
		for t, termIdx := range roll.DieTerms() {
			for d, res := range roll.Terms[termIdx].Results {
				if res.Active && res.Value == 1 {
					sel = append(sel, DieRef{Roll: r, Term: t, Die: d})
				}
			}
		}
	}
	return sel
}
