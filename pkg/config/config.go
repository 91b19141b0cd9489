// Package config loads the model parameters from an ini file, in the same
// section/key style the teacher's EDS parser uses for CANopen object
// dictionaries.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/samsamfire/c3d/pkg/c3dmsg"
)

// Config parameterises one checker run.
type Config struct {
	Sockets         int
	MailboxCapacity int
	Values          []c3dmsg.Value
	MaxStates       int
	MaxDepth        int
}

// Default returns a small but non-trivial configuration: three sockets (the
// minimum witness for SWMR races), a two-value domain, and generous
// exploration bounds.
func Default() Config {
	return Config{
		Sockets:         3,
		MailboxCapacity: 0, // resolved to network.DefaultCapacity by the environment
		Values:          []c3dmsg.Value{0, 1},
		MaxStates:       200000,
		MaxDepth:        64,
	}
}

// Load reads a model configuration from an ini file at path. Missing keys
// fall back to Default's values.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("config: load %s: %w", path, err)
	}
	sec := f.Section("model")
	if sec.HasKey("sockets") {
		cfg.Sockets = sec.Key("sockets").MustInt(cfg.Sockets)
	}
	if sec.HasKey("mailbox_capacity") {
		cfg.MailboxCapacity = sec.Key("mailbox_capacity").MustInt(cfg.MailboxCapacity)
	}
	if sec.HasKey("value_domain") {
		n := sec.Key("value_domain").MustInt(len(cfg.Values))
		values := make([]c3dmsg.Value, n)
		for i := range values {
			values[i] = c3dmsg.Value(i)
		}
		cfg.Values = values
	}
	if sec.HasKey("max_states") {
		cfg.MaxStates = sec.Key("max_states").MustInt(cfg.MaxStates)
	}
	if sec.HasKey("max_depth") {
		cfg.MaxDepth = sec.Key("max_depth").MustInt(cfg.MaxDepth)
	}
	if cfg.Sockets < 2 {
		return cfg, fmt.Errorf("%w: sockets must be at least 2 to exercise any coherence transition", c3dmsg.ErrIllegalArgument)
	}
	return cfg, nil
}
