// Package config loads the host configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/qbvm/qbvm/vm"
)

// Config is the TOML host configuration.
type Config struct {
	// Quantum is the number of instructions per scheduler tick.
	Quantum int `toml:"quantum"`
	// TickMS is the scheduler period in milliseconds.
	TickMS int `toml:"tick-ms"`
	// StackLimit bounds the operand stack depth.
	StackLimit int `toml:"stack-limit"`
	// FrameLimit bounds the call stack depth.
	FrameLimit int `toml:"frame-limit"`
}

// Default returns the built-in configuration.
func Default() *Config {
	d := vm.DefaultConfig()
	return &Config{
		Quantum:    d.Quantum,
		TickMS:     int(d.Tick / time.Millisecond),
		StackLimit: d.StackLimit,
		FrameLimit: d.FrameLimit,
	}
}

// Load reads a TOML file, filling omitted fields with the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// VM converts to the machine's configuration.
func (c *Config) VM() vm.Config {
	return vm.Config{
		Quantum:    c.Quantum,
		Tick:       time.Duration(c.TickMS) * time.Millisecond,
		StackLimit: c.StackLimit,
		FrameLimit: c.FrameLimit,
	}
}
