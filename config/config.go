// Package config defines a TSTP node's on-disk configuration: its
// place in the network (coordinates, scale), its duty cycle, its radio
// characteristics, and which Smart Data units it binds on startup.
// Shape and merge order follow ptp/sptp/client's Config: a
// DefaultConfig, a Validate, and a PrepareConfig that layers a YAML
// file under CLI flag overrides.
package config

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"

	"github.com/trustfulmesh/tstp/mac"
	"github.com/trustfulmesh/tstp/protocol"
	"github.com/trustfulmesh/tstp/radio"
)

// RadioConfig carries the fixed timing characteristics of a node's
// transceiver, in microseconds except where noted. Defaults match a
// 250kbps IEEE 802.15.4 O-QPSK PHY.
type RadioConfig struct {
	ByteRate         int                   `yaml:"byte_rate"`
	PHYHeaderSize    int                   `yaml:"phy_header_size"`
	CCATXGap         protocol.TimeOffset   `yaml:"cca_tx_gap"`
	TurnaroundTime   protocol.TimeOffset   `yaml:"turnaround_time"`
	RXToTXDelay      protocol.TimeOffset   `yaml:"rx_to_tx_delay"`
	TXToRXDelay      protocol.TimeOffset   `yaml:"tx_to_rx_delay"`
	IntHandlingDelay protocol.TimeOffset   `yaml:"int_handling_delay"`
	Channel          int                   `yaml:"channel"`
}

// Validate reports whether r describes a physically sane radio.
func (r *RadioConfig) Validate() error {
	if r.ByteRate <= 0 {
		return fmt.Errorf("byte_rate must be positive")
	}
	if r.PHYHeaderSize < 0 {
		return fmt.Errorf("phy_header_size must be 0 or positive")
	}
	if r.Channel < 0 || r.Channel > 26 {
		return fmt.Errorf("channel must be between 0 and 26")
	}
	return nil
}

// Characteristics converts r into the radio.Characteristics the mac
// package derives its duty-cycle timing from.
func (r RadioConfig) Characteristics() radio.Characteristics {
	return radio.Characteristics{
		ByteRate:         r.ByteRate,
		PHYHeaderSize:    r.PHYHeaderSize,
		CCATXGap:         r.CCATXGap,
		TurnaroundTime:   r.TurnaroundTime,
		RXToTXDelay:      r.RXToTXDelay,
		TXToRXDelay:      r.TXToRXDelay,
		IntHandlingDelay: r.IntHandlingDelay,
	}
}

// CoordinatesConfig is a node's fixed position in the network's shared
// coordinate space, in centimeters.
type CoordinatesConfig struct {
	X int64 `yaml:"x"`
	Y int64 `yaml:"y"`
	Z int64 `yaml:"z"`
}

// Coordinates converts c into a protocol.Coordinates.
func (c CoordinatesConfig) Coordinates() protocol.Coordinates {
	return protocol.Coordinates{X: c.X, Y: c.Y, Z: c.Z}
}

// BindingConfig describes one Smart Data unit this node binds on
// startup. Exactly one of Sensor-backed (mode != "") or subscriber
// (period/region) fields apply, distinguished by Mode.
type BindingConfig struct {
	Unit   protocol.Unit `yaml:"unit"`
	Mode   string        `yaml:"mode"` // "private", "advertised", "commanded", or "remote"
	Period time.Duration `yaml:"period"`
	Radius int64         `yaml:"radius"`
}

// Validate reports whether b names a supported mode.
func (b *BindingConfig) Validate() error {
	switch b.Mode {
	case "private", "advertised", "commanded", "remote":
	default:
		return fmt.Errorf("binding for unit %v: unsupported mode %q", b.Unit, b.Mode)
	}
	if b.Mode == "remote" && b.Radius <= 0 {
		return fmt.Errorf("binding for unit %v: remote subscription needs a positive radius", b.Unit)
	}
	return nil
}

// Config is a TSTP node's complete startup configuration.
type Config struct {
	NodeName      string             `yaml:"node_name"`
	Coordinates   CoordinatesConfig  `yaml:"coordinates"`
	Sink          CoordinatesConfig  `yaml:"sink"`
	NetworkSize   int                `yaml:"network_size"`
	DutyCycle     mac.DutyCycle      `yaml:"duty_cycle_ppm"`
	Radio         RadioConfig        `yaml:"radio"`
	Bindings      []BindingConfig    `yaml:"bindings"`
	MetricsAddr   string             `yaml:"metrics_addr"`
	LogLevel      string             `yaml:"log_level"`
}

// DefaultConfig returns a Config populated with the defaults a single
// standalone node would need to come up, overridable by a YAML file
// and CLI flags.
func DefaultConfig() *Config {
	return &Config{
		NodeName:    "tstp-node",
		NetworkSize: 256,
		DutyCycle:   mac.DefaultDutyCycle,
		Radio: RadioConfig{
			ByteRate:         31250, // 250kbps O-QPSK
			PHYHeaderSize:    6,
			CCATXGap:         128,
			TurnaroundTime:   192,
			RXToTXDelay:      192,
			TXToRXDelay:      192,
			IntHandlingDelay: 50,
			Channel:          11,
		},
		MetricsAddr: ":9110",
		LogLevel:    "info",
	}
}

// Validate reports whether c is internally consistent.
func (c *Config) Validate() error {
	if c.NodeName == "" {
		return fmt.Errorf("node_name must be specified")
	}
	if c.NetworkSize <= 0 {
		return fmt.Errorf("network_size must be positive")
	}
	if c.DutyCycle == 0 {
		return fmt.Errorf("duty_cycle_ppm must be positive")
	}
	if err := c.Radio.Validate(); err != nil {
		return fmt.Errorf("invalid radio config: %w", err)
	}
	seen := map[protocol.Unit]bool{}
	for i := range c.Bindings {
		if err := c.Bindings[i].Validate(); err != nil {
			return fmt.Errorf("invalid binding: %w", err)
		}
		if seen[c.Bindings[i].Unit] {
			return fmt.Errorf("duplicate binding for unit %v", c.Bindings[i].Unit)
		}
		seen[c.Bindings[i].Unit] = true
	}
	switch c.LogLevel {
	case "debug", "info", "warning", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warning, error")
	}
	return nil
}

// Scale reports the coordinate scale this node's NetworkSize implies.
func (c *Config) Scale() protocol.Scale {
	return protocol.ScaleForNetworkSize(c.NetworkSize)
}

// ReadConfig loads a Config from a YAML file, starting from
// DefaultConfig so an on-disk file only needs to set what it overrides.
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// PrepareConfig builds the final Config for a run: defaults, then an
// optional on-disk file, then CLI flag overrides recorded in
// setFlags, then validation.
func PrepareConfig(cfgPath, nodeName string, metricsAddr string, logLevel string, setFlags map[string]bool) (*Config, error) {
	cfg := DefaultConfig()
	var err error
	warn := func(name string) {
		log.Warningf("config: overriding %s from CLI flag", name)
	}
	if cfgPath != "" {
		cfg, err = ReadConfig(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("reading config from %q: %w", cfgPath, err)
		}
	}
	if setFlags["node-name"] {
		warn("node-name")
		cfg.NodeName = nodeName
	}
	if setFlags["metrics-addr"] {
		warn("metrics-addr")
		cfg.MetricsAddr = metricsAddr
	}
	if setFlags["log-level"] {
		warn("log-level")
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	log.Debugf("config: %+v", cfg)
	return cfg, nil
}
