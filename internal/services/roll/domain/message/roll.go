package message

import (
	"fmt"
	"strconv"
	"strings"
)

// RollKind is the exhaustive tag of a roll. Every component switches on it
// explicitly instead of inferring kinds from roll contents.
type RollKind string

const (
	KindD20    RollKind = "d20"
	KindDamage RollKind = "damage"
	KindBasic  RollKind = "basic"
)

// Valid reports whether k is one of the known roll kinds.
func (k RollKind) Valid() bool {
	switch k {
	case KindD20, KindDamage, KindBasic:
		return true
	}
	return false
}

// TermKind tags a formula term.
type TermKind string

const (
	TermDie      TermKind = "die"
	TermOperator TermKind = "operator"
	TermNumber   TermKind = "number"
)

// AdvantageMode is the multiroll mode encoded in a d20 roll.
type AdvantageMode int

const (
	ModeDisadvantage AdvantageMode = -1
	ModeNormal       AdvantageMode = 0
	ModeAdvantage    AdvantageMode = 1
)

// String returns the lowercase mode name.
func (m AdvantageMode) String() string {
	switch m {
	case ModeAdvantage:
		return "advantage"
	case ModeDisadvantage:
		return "disadvantage"
	default:
		return "normal"
	}
}

// KeepPolicy decides whether a reroll outcome replaces the prior value.
type KeepPolicy string

const (
	// KeepNew always keeps the fresh outcome.
	KeepNew KeepPolicy = "new"
	// KeepBetter keeps max(old, new).
	KeepBetter KeepPolicy = "better"
)

// Valid reports whether p is a supported policy.
func (p KeepPolicy) Valid() bool {
	return p == KeepNew || p == KeepBetter
}

// DieResult is one discrete outcome of a single die.
type DieResult struct {
	Value       int        `json:"value"`
	Active      bool       `json:"active"`
	WasRerolled bool       `json:"was_rerolled,omitempty"`
	OldValue    int        `json:"old_value,omitempty"`
	NewValue    int        `json:"new_value,omitempty"`
	KeepPolicy  KeepPolicy `json:"keep_policy,omitempty"`
}

// Term is one component of a roll formula.
type Term struct {
	Kind      TermKind    `json:"kind"`
	Faces     int         `json:"faces,omitempty"`
	Count     int         `json:"count,omitempty"`
	Modifiers string      `json:"modifiers,omitempty"`
	Flavor    string      `json:"flavor,omitempty"`
	Results   []DieResult `json:"results,omitempty"`
	Operator  string      `json:"operator,omitempty"`
	Number    int         `json:"number,omitempty"`
}

// Die builds a die term from already rolled values; every value is active.
func Die(faces int, values ...int) Term {
	results := make([]DieResult, len(values))
	for i, v := range values {
		results[i] = DieResult{Value: v, Active: true}
	}
	return Term{Kind: TermDie, Faces: faces, Count: len(values), Results: results}
}

// Plus builds a "+" operator term.
func Plus() Term { return Term{Kind: TermOperator, Operator: "+"} }

// Minus builds a "-" operator term.
func Minus() Term { return Term{Kind: TermOperator, Operator: "-"} }

// Number builds a static number term.
func Number(n int) Term { return Term{Kind: TermNumber, Number: n} }

// ActiveSum returns the sum of the active results of a die term.
func (t Term) ActiveSum() int {
	sum := 0
	for _, r := range t.Results {
		if r.Active {
			sum += r.Value
		}
	}
	return sum
}

// Roll is one evaluated roll inside a message.
type Roll struct {
	Kind          RollKind      `json:"kind"`
	Terms         []Term        `json:"terms"`
	AdvantageMode AdvantageMode `json:"advantage_mode,omitempty"`
	Critical      bool          `json:"critical,omitempty"`
	DamageType    string        `json:"damage_type,omitempty"`
	Properties    []string      `json:"properties,omitempty"`
	Total         int           `json:"total"`
}

// Clone returns a deep copy of the roll.
func (r Roll) Clone() Roll {
	out := r
	if r.Terms != nil {
		out.Terms = make([]Term, len(r.Terms))
		for i, term := range r.Terms {
			out.Terms[i] = term
			if term.Results != nil {
				out.Terms[i].Results = append([]DieResult(nil), term.Results...)
			}
		}
	}
	if r.Properties != nil {
		out.Properties = append([]string(nil), r.Properties...)
	}
	return out
}

// Recompute refreshes Total: active die values plus static numbers, each
// signed by the operator that precedes it.
func (r *Roll) Recompute() {
	total := 0
	sign := 1
	for _, term := range r.Terms {
		switch term.Kind {
		case TermOperator:
			if term.Operator == "-" {
				sign = -1
			} else {
				sign = 1
			}
		case TermDie:
			total += sign * term.ActiveSum()
			sign = 1
		case TermNumber:
			total += sign * term.Number
			sign = 1
		}
	}
	r.Total = total
}

// DieTerms returns the indices into Terms of every die term, in order.
func (r Roll) DieTerms() []int {
	var out []int
	for i, term := range r.Terms {
		if term.Kind == TermDie {
			out = append(out, i)
		}
	}
	return out
}

// Formula renders the roll formula, e.g. "2d6 + 3".
func (r Roll) Formula() string {
	parts := make([]string, 0, len(r.Terms))
	for _, term := range r.Terms {
		switch term.Kind {
		case TermDie:
			parts = append(parts, fmt.Sprintf("%dd%d%s", term.Count, term.Faces, term.Modifiers))
		case TermOperator:
			parts = append(parts, term.Operator)
		case TermNumber:
			parts = append(parts, strconv.Itoa(term.Number))
		}
	}
	return strings.Join(parts, " ")
}
