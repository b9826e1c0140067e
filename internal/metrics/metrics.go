// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes controller activity as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collector set.
type Config struct {
	// Namespace is the metrics namespace (default: "hircpd").
	Namespace string

	// Buckets are the histogram buckets for dispatch duration.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collector set.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "hircpd",
		Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector holds the controller metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	sessionsTotal    *prometheus.CounterVec
	sessionActive    prometheus.Gauge
	packetsReceived  *prometheus.CounterVec
	packetsDropped   *prometheus.CounterVec
	responsesSent    *prometheus.CounterVec
	graspCommands    *prometheus.CounterVec
	modeChanges      *prometheus.CounterVec
	driverErrors     *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
}

// New registers the collectors.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Collector{
		sessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "sessions_total",
			Help:      "Sessions ended, by outcome",
		}, []string{"result"}),

		sessionActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "session_active",
			Help:      "1 while a client session is active",
		}),

		packetsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "packets_received_total",
			Help:      "Packets received, by type",
		}, []string{"type"}),

		packetsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "packets_dropped_total",
			Help:      "Packets dropped without dispatch, by reason",
		}, []string{"reason"}),

		responsesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "responses_sent_total",
			Help:      "Packets sent to the client, by type",
		}, []string{"type"}),

		graspCommands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "grasp_commands_total",
			Help:      "Closed-loop grasp decisions, by command",
		}, []string{"command"}),

		modeChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "mode_changes_total",
			Help:      "Accepted MODE packets, by mode",
		}, []string{"mode"}),

		driverErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "driver_errors_total",
			Help:      "Failed actuator or sensor calls, by operation",
		}, []string{"op"}),

		dispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time to dispatch one DATA packet, including driver calls",
			Buckets:   config.Buckets,
		}),
	}
}

// Session outcomes
const (
	ResultTerminated      = "terminated"
	ResultHandshakeFailed = "handshake_failed"
	ResultTransportError  = "transport_error"
	ResultCancelled       = "cancelled"
)

// Drop reasons
const (
	DropInvalidType = "invalid_type"
	DropInvalidMode = "invalid_mode"
	DropBadLength   = "bad_length"
	DropUnexpected  = "unexpected_type"
)

func (c *Collector) SessionStarted() {
	if c == nil {
		return
	}
	c.sessionActive.Set(1)
}

func (c *Collector) SessionEnded(result string) {
	if c == nil {
		return
	}
	c.sessionActive.Set(0)
	c.sessionsTotal.WithLabelValues(result).Inc()
}

func (c *Collector) PacketReceived(typ string) {
	if c == nil {
		return
	}
	c.packetsReceived.WithLabelValues(typ).Inc()
}

func (c *Collector) PacketDropped(reason string) {
	if c == nil {
		return
	}
	c.packetsDropped.WithLabelValues(reason).Inc()
}

func (c *Collector) ResponseSent(typ string) {
	if c == nil {
		return
	}
	c.responsesSent.WithLabelValues(typ).Inc()
}

func (c *Collector) GraspCommand(command string) {
	if c == nil {
		return
	}
	c.graspCommands.WithLabelValues(command).Inc()
}

func (c *Collector) ModeChanged(mode string) {
	if c == nil {
		return
	}
	c.modeChanges.WithLabelValues(mode).Inc()
}

func (c *Collector) DriverError(op string) {
	if c == nil {
		return
	}
	c.driverErrors.WithLabelValues(op).Inc()
}

// ObserveDispatch records one dispatch duration in seconds.
func (c *Collector) ObserveDispatch(seconds float64) {
	if c == nil {
		return
	}
	c.dispatchDuration.Observe(seconds)
}
