// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the tunables of a Link and its Syncifier.
// Durations are expressed in milliseconds in TOML.
type Config struct {
	// WaitTimeoutMS bounds each blocking wait on the signal buffer. The
	// interrupt flag is observed only when such a wait times out.
	WaitTimeoutMS int `toml:"wait_timeout_ms"`

	// ReapIntervalMS is the period of the background sweep that advances
	// synchronous tasks nobody is blocked on.
	ReapIntervalMS int `toml:"reap_interval_ms"`

	// BackoffCeilingMS caps the exponential sleep of a responder waiting
	// for a contended signal slot.
	BackoffCeilingMS int `toml:"backoff_ceiling_ms"`

	// InitialBufferSize is the requester's first guess for a synchronous
	// reply. It must hold a correlation id.
	InitialBufferSize int `toml:"initial_buffer_size"`

	// PortCapacity is the per-direction queue capacity of ports created by
	// the link for ENDPOINT requests and proxied values.
	PortCapacity int `toml:"port_capacity"`
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		WaitTimeoutMS:     50,
		ReapIntervalMS:    20,
		BackoffCeilingMS:  32,
		InitialBufferSize: IDLength,
		PortCapacity:      DefaultPortCapacity,
	}
}

// LoadConfig reads a TOML file over DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("synclink: config load failed (%s): %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.WaitTimeoutMS <= 0:
		return fmt.Errorf("synclink: wait_timeout_ms must be positive, got %d", c.WaitTimeoutMS)
	case c.ReapIntervalMS <= 0:
		return fmt.Errorf("synclink: reap_interval_ms must be positive, got %d", c.ReapIntervalMS)
	case c.BackoffCeilingMS <= 0:
		return fmt.Errorf("synclink: backoff_ceiling_ms must be positive, got %d", c.BackoffCeilingMS)
	case c.InitialBufferSize < IDLength:
		return fmt.Errorf("synclink: initial_buffer_size must be at least %d, got %d", IDLength, c.InitialBufferSize)
	case c.PortCapacity <= 0:
		return fmt.Errorf("synclink: port_capacity must be positive, got %d", c.PortCapacity)
	}
	return nil
}

func (c Config) waitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutMS) * time.Millisecond
}

func (c Config) reapInterval() time.Duration {
	return time.Duration(c.ReapIntervalMS) * time.Millisecond
}

func (c Config) backoffCeiling() time.Duration {
	return time.Duration(c.BackoffCeilingMS) * time.Millisecond
}
