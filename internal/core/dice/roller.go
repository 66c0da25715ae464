// Package dice produces fresh die outcomes for the roll pipeline.
//
// The pipeline treats outcome generation as an external, trusted service and
// only talks to the Roller interface. SeededRoller is the default
// implementation used by the server and CLI.
package dice

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
)

// Roller produces count fresh outcomes of a die with the given faces.
type Roller interface {
	Roll(ctx context.Context, faces, count int) ([]int, error)
}

// RollerFunc adapts a function to Roller.
type RollerFunc func(ctx context.Context, faces, count int) ([]int, error)

// Roll implements Roller.
func (f RollerFunc) Roll(ctx context.Context, faces, count int) ([]int, error) {
	return f(ctx, faces, count)
}

// SeededRoller rolls from one pseudo-random stream. It is safe for concurrent use.
type SeededRoller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededRoller creates a roller seeded by the provided seed function.
func NewSeededRoller(seed func() (int64, error)) (*SeededRoller, error) {
	if seed == nil {
		return nil, fmt.Errorf("seed function is required")
	}
	value, err := seed()
	if err != nil {
		return nil, fmt.Errorf("seed roller: %w", err)
	}
	return &SeededRoller{rng: rand.New(rand.NewSource(value))}, nil
}

// Roll implements Roller.
func (r *SeededRoller) Roll(ctx context.Context, faces, count int) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return outcomes(r.rng, Spec{Sides: faces, Count: count})
}

// Sequence is a deterministic Roller that replays fixed outcomes in order.
// Tests use it to pin fresh outcomes.
type Sequence struct {
	mu     sync.Mutex
	values []int
	calls  []Spec
}

// NewSequence creates a Sequence replaying values.
func NewSequence(values ...int) *Sequence {
	return &Sequence{values: append([]int(nil), values...)}
}

// Roll implements Roller.
func (s *Sequence) Roll(ctx context.Context, faces, count int) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := (Spec{Sides: faces, Count: count}).Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) < count {
		return nil, fmt.Errorf("sequence exhausted: want %d, have %d", count, len(s.values))
	}
	out := append([]int(nil), s.values[:count]...)
	s.values = s.values[count:]
	s.calls = append(s.calls, Spec{Sides: faces, Count: count})
	return out, nil
}

// Calls returns the requests served so far.
func (s *Sequence) Calls() []Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Spec(nil), s.calls...)
}
