// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hircpd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Listen != ":5001" || cfg.RecvTimeout != 60*time.Second || cfg.ErrorReplies {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
transport: ws
listen: 127.0.0.1:9000
recv_timeout: 5s
error_replies: true
driver: bridge
bridge_port: /dev/ttyUSB1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Transport != TransportWebSocket || cfg.Listen != "127.0.0.1:9000" {
		t.Errorf("transport/listen = %s/%s", cfg.Transport, cfg.Listen)
	}
	if cfg.RecvTimeout != 5*time.Second || !cfg.ErrorReplies {
		t.Errorf("recv_timeout=%v error_replies=%v", cfg.RecvTimeout, cfg.ErrorReplies)
	}
	if cfg.WSPath != "/hircp" || cfg.BridgeBaud != 115200 {
		t.Errorf("unset keys lost their defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate error: %v", err)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg != Default() {
		t.Errorf("empty file changed defaults: %+v", cfg)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	if _, err := Load(writeConfig(t, "listen_port: 5001\n")); err == nil {
		t.Error("unknown key accepted")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestResolve_Env(t *testing.T) {
	path := writeConfig(t, "recv_timeout: 0s\n")
	t.Setenv(EnvConfig, path)

	cfg, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if cfg.RecvTimeout != 0 {
		t.Errorf("recv_timeout = %v, want 0 from env file", cfg.RecvTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown transport", func(c *Config) { c.Transport = "udp" }, "unknown transport"},
		{"serial without port", func(c *Config) { c.Transport = TransportSerial }, "serial_port required"},
		{"bridge without port", func(c *Config) { c.Driver = DriverBridge }, "bridge_port required"},
		{"shared serial device", func(c *Config) {
			c.Transport = TransportSerial
			c.SerialPort = "/dev/ttyACM0"
			c.Driver = DriverBridge
			c.BridgePort = "/dev/ttyACM0"
		}, "must differ"},
		{"negative timeout", func(c *Config) { c.RecvTimeout = -time.Second }, "recv_timeout"},
		{"unknown driver", func(c *Config) { c.Driver = "pwm" }, "unknown driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
