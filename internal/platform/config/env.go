// Package config loads process configuration from QUICKROLL_* environment
// variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Validator is implemented by configs that check themselves after parsing.
type Validator interface {
	Validate() error
}

// ParseEnv loads target from the process environment.
func ParseEnv(target any) error {
	return parse(target, env.Options{})
}

// ParseEnvMap loads target from vars instead of the process environment.
// Unset variables keep their defaults.
func ParseEnvMap(target any, vars map[string]string) error {
	return parse(target, env.Options{Environment: vars})
}

func parse(target any, opts env.Options) error {
	if err := env.ParseWithOptions(target, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if v, ok := target.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}
