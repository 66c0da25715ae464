// Package random provides seed sources for the dice roller.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
)

// SeedFunc returns a seed for a pseudo-random stream.
type SeedFunc func() (int64, error)

// NewSeed generates a high-entropy seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Fixed returns a SeedFunc that always yields seed. A zero seed falls back to
// NewSeed so an unset configuration value never pins the dice stream.
func Fixed(seed int64) SeedFunc {
	if seed == 0 {
		return NewSeed
	}
	return func() (int64, error) { return seed, nil }
}
