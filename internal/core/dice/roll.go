package dice

import (
	"errors"
	"math/rand"
)

// ErrInvalidDiceSpec indicates a die specification has invalid fields.
var ErrInvalidDiceSpec = errors.New("dice must have positive sides and count")

// Spec describes one batch of identical dice: Count dice of Sides faces.
type Spec struct {
	Sides int
	Count int
}

// Validate rejects non-positive sides or counts.
func (s Spec) Validate() error {
	if s.Sides <= 0 || s.Count <= 0 {
		return ErrInvalidDiceSpec
	}
	return nil
}

// outcomes draws spec.Count values in [1, spec.Sides] from rng, in order.
func outcomes(rng *rand.Rand, spec Spec) ([]int, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	values := make([]int, spec.Count)
	for i := range values {
		values[i] = rng.Intn(spec.Sides) + 1
	}
	return values, nil
}
