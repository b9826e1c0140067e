// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the controller configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/hircpd/internal/transport"
	"gopkg.in/yaml.v3"
)

// EnvConfig names a config file when no --config flag is given.
const EnvConfig = "HIRCPD_CONFIG"

// Transports
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "ws"
	TransportSerial    = "serial"
)

// Drivers
const (
	DriverSim    = "sim"
	DriverBridge = "bridge"
)

// Config is the full controller configuration.
type Config struct {
	Transport  string `yaml:"transport"`
	Listen     string `yaml:"listen"`
	WSPath     string `yaml:"ws_path"`
	SerialPort string `yaml:"serial_port"`
	SerialBaud int    `yaml:"serial_baud"`

	Driver        string        `yaml:"driver"`
	BridgePort    string        `yaml:"bridge_port"`
	BridgeBaud    int           `yaml:"bridge_baud"`
	BridgeTimeout time.Duration `yaml:"bridge_timeout"`

	RecvTimeout  time.Duration `yaml:"recv_timeout"`
	ErrorReplies bool          `yaml:"error_replies"`

	StatusAddr  string `yaml:"status_addr"`
	CaptureFile string `yaml:"capture_file"`
	TUI         bool   `yaml:"tui"`
	Debug       bool   `yaml:"debug"`
}

// Default returns the built-in configuration: TCP on the well-known port,
// simulated hand, 60s receive timeout, silent drops.
func Default() Config {
	return Config{
		Transport:     TransportTCP,
		Listen:        fmt.Sprintf(":%d", transport.DefaultPort),
		WSPath:        transport.DefaultWSPath,
		SerialBaud:    115200,
		Driver:        DriverSim,
		BridgeBaud:    115200,
		BridgeTimeout: 100 * time.Millisecond,
		RecvTimeout:   60 * time.Second,
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve picks the config file: the explicit path, else $HIRCPD_CONFIG,
// else none.
func Resolve(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var errs []error

	switch c.Transport {
	case TransportTCP, TransportWebSocket:
		if c.Listen == "" {
			errs = append(errs, fmt.Errorf("listen address required for %s transport", c.Transport))
		}
	case TransportSerial:
		if c.SerialPort == "" {
			errs = append(errs, errors.New("serial_port required for serial transport"))
		}
		if c.SerialBaud <= 0 {
			errs = append(errs, fmt.Errorf("invalid serial_baud %d", c.SerialBaud))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q (use tcp, ws or serial)", c.Transport))
	}

	switch c.Driver {
	case DriverSim:
	case DriverBridge:
		if c.BridgePort == "" {
			errs = append(errs, errors.New("bridge_port required for bridge driver"))
		}
		if c.BridgeBaud <= 0 {
			errs = append(errs, fmt.Errorf("invalid bridge_baud %d", c.BridgeBaud))
		}
		if c.BridgeTimeout <= 0 {
			errs = append(errs, errors.New("bridge_timeout must be positive"))
		}
		if c.Transport == TransportSerial && c.BridgePort == c.SerialPort {
			errs = append(errs, errors.New("bridge_port and serial_port must differ"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown driver %q (use sim or bridge)", c.Driver))
	}

	if c.RecvTimeout < 0 {
		errs = append(errs, errors.New("recv_timeout must not be negative"))
	}

	return errors.Join(errs...)
}
