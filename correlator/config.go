// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package correlator

import (
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/momentics/logcorrelate/api"
)

// Config is the correlator's configuration surface (spec.md §6):
// key/scope/timeout/prefix/synthetic_message, plus the SPEC_FULL
// additions needed to wire a runnable engine (persist name, tick
// cadence, optional pinning, an optional soft cap on live contexts).
type Config struct {
	// KeyTemplate is evaluated per message to derive the grouping key.
	// Empty means correlation is disabled: Process becomes pass-through.
	KeyTemplate string `mapstructure:"key"`
	// Scope selects which intrinsic fields are mixed into the key.
	Scope string `mapstructure:"scope"`
	// TimeoutSeconds is the per-context inactivity timeout. Required
	// (fatal ConfigError at init) whenever KeyTemplate is non-empty.
	TimeoutSeconds int64 `mapstructure:"timeout"`
	// Prefix names the field prefix synthetic messages are built under.
	Prefix string `mapstructure:"prefix"`
	// SyntheticTemplate is the template block evaluated by the
	// SyntheticBuilder at expiry.
	SyntheticTemplate string `mapstructure:"synthetic_message"`
	// PersistName is the stable blob name passed to the PersistenceStore.
	PersistName string `mapstructure:"persist_name"`
	// TickInterval is how often the Tick Driver calls tick().
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// PinTickDriver pins the tick driver's goroutine to a CPU.
	PinTickDriver bool `mapstructure:"pin_tick_driver"`
	// MaxContexts caps the number of simultaneously live contexts; 0
	// means unlimited. Exceeding it surfaces AllocFailure for that
	// message (spec.md §7) rather than growing without bound.
	MaxContexts int `mapstructure:"max_contexts"`
}

// DefaultConfig returns a Config with correlation disabled (no
// KeyTemplate) and sane ambient defaults for everything else. Callers
// set KeyTemplate/TimeoutSeconds to enable correlation.
func DefaultConfig() *Config {
	return &Config{
		Scope:        "global",
		PersistName:  "correlation()",
		TickInterval: time.Second,
	}
}

// Validate implements spec.md §7's ConfigError: fatal at init when a
// key template is configured but timeout or scope is missing/invalid.
// With no key template, the engine is a valid pass-through and
// Validate never rejects it on those grounds.
func (c *Config) Validate() error {
	if c.TickInterval <= 0 {
		return api.NewError(api.ErrCodeConfig, "tick_interval must be > 0").
			WithContext("tick_interval", c.TickInterval)
	}
	if c.PersistName == "" {
		return api.NewError(api.ErrCodeConfig, "persist_name must not be empty")
	}
	if c.KeyTemplate == "" {
		return nil
	}
	if c.TimeoutSeconds <= 0 {
		return api.NewError(api.ErrCodeConfig, "timeout must be > 0 when key is configured").
			WithContext("timeout", c.TimeoutSeconds)
	}
	if _, ok := api.ParseScope(c.Scope); !ok {
		return api.NewError(api.ErrCodeConfig, "invalid scope").
			WithContext("scope", c.Scope)
	}
	return nil
}

// DecodeConfig decodes a flat options map (as produced by
// control.ConfigStore.GetSnapshot or a decoded configuration file) onto
// a Config seeded with DefaultConfig's values, via mapstructure —
// grounded in the same decoding library jingkaihe-kodelet uses to bind
// its own tool-call configuration.
func DecodeConfig(snapshot map[string]any) (*Config, error) {
	cfg := DefaultConfig()
	if err := mapstructure.Decode(snapshot, cfg); err != nil {
		return nil, api.NewError(api.ErrCodeConfig, "failed to decode configuration").Wrap(err)
	}
	return cfg, nil
}
