// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session runs the HIRCP exchange for one accepted client link:
// handshake, receive loop, mode changes and termination.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/hircpd/internal/capture"
	"github.com/Thermoquad/hircpd/internal/dispatch"
	"github.com/Thermoquad/hircpd/internal/driver"
	"github.com/Thermoquad/hircpd/internal/grasp"
	"github.com/Thermoquad/hircpd/internal/logging"
	"github.com/Thermoquad/hircpd/internal/metrics"
	"github.com/Thermoquad/hircpd/internal/transport"
	"github.com/Thermoquad/hircpd/pkg/hircp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Thermoquad/hircpd/internal/session"

// State is the session lifecycle state.
type State int

const (
	Idle State = iota
	Handshaking
	Active
	Terminating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Handshaking:
		return "HANDSHAKING"
	case Active:
		return "ACTIVE"
	case Terminating:
		return "TERMINATING"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrHandshake is returned when the first packet on a link does not decode
// and validate.
var ErrHandshake = errors.New("session: handshake failed")

// TransportError reports a failed receive or send. It always ends the session.
type TransportError struct {
	Op  string // "receive" or "send"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("session: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Options configures a session. Every field except Hand is optional.
type Options struct {
	Hand driver.Hand

	// RecvTimeout bounds each receive, including the handshake. Zero waits
	// forever.
	RecvTimeout time.Duration

	// ErrorReplies answers dropped packets with an ERROR packet instead of
	// silence.
	ErrorReplies bool

	ID      uint64
	Stats   *hircp.Statistics
	Metrics *metrics.Collector
	Capture *capture.Writer
	Tracer  trace.Tracer
}

// Snapshot is a copy of the observable session state.
type Snapshot struct {
	ID            uint64                   `json:"id"`
	State         State                    `json:"state"`
	Mode          string                   `json:"mode"`
	Remote        string                   `json:"remote"`
	StartedAt     time.Time                `json:"started_at"`
	FingerTargets [hircp.NumServos]uint8   `json:"finger_targets"`
	Sensors       [hircp.NumSensors]uint16 `json:"sensors"`
	LastGrasp     string                   `json:"last_grasp,omitempty"`
	Dispatched    uint64                   `json:"dispatched"`
}

// Session owns one client link for its whole lifetime.
type Session struct {
	conn   transport.Conn
	opts   Options
	tracer trace.Tracer

	mu         sync.RWMutex
	state      State
	mode       hircp.Mode
	targets    [hircp.NumServos]uint8
	sensors    [hircp.NumSensors]uint16
	lastGrasp  grasp.Command
	hasGrasp   bool
	dispatched uint64
	startedAt  time.Time
}

// New creates an Idle session on an accepted link.
func New(conn transport.Conn, opts Options) *Session {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Session{
		conn:      conn,
		opts:      opts,
		tracer:    tracer,
		state:     Idle,
		mode:      hircp.DefaultMode,
		startedAt: time.Now(),
	}
}

// Run performs the handshake and serves packets until the client terminates,
// the link fails or ctx ends. The link is always closed and the session is
// back in Idle when Run returns.
//
// Run returns nil after a TRQ, an error wrapping ErrHandshake after a failed
// handshake, a *TransportError after a link failure and ctx.Err() after
// cancellation.
func (s *Session) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	s.conn.SetReadTimeout(s.opts.RecvTimeout)
	s.setState(Handshaking)

	if err := s.handshake(ctx); err != nil {
		return s.finish(ctx, err, false)
	}

	s.setState(Active)
	s.opts.Metrics.SessionStarted()
	logging.Info("session %d: active (%s)", s.opts.ID, s.conn.RemoteAddr())

	return s.finish(ctx, s.serve(ctx), true)
}

// handshake accepts the link when the first packet decodes and validates.
// The packet is not dispatched.
func (s *Session) handshake(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "hircp.handshake",
		trace.WithAttributes(attribute.String("hircp.remote", s.conn.RemoteAddr())))
	defer span.End()

	raw, err := s.conn.ReadPacket()
	if err != nil {
		span.SetStatus(codes.Error, "receive failed")
		return fmt.Errorf("%w: %w", ErrHandshake, &TransportError{Op: "receive", Err: err})
	}
	s.opts.Capture.Write(s.opts.ID, capture.In, raw)

	p, err := hircp.Decode(raw)
	if err != nil {
		s.opts.Stats.RecordUndecodable()
		span.SetStatus(codes.Error, "undecodable")
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	s.opts.Stats.RecordReceived(p)
	if !hircp.IsValid(p) {
		span.SetStatus(codes.Error, "invalid type")
		return fmt.Errorf("%w: invalid packet type 0x%02X", ErrHandshake, byte(p.Type()))
	}
	s.opts.Metrics.PacketReceived(p.Type().String())
	span.SetAttributes(attribute.String("hircp.type", p.Type().String()))

	return s.send(hircp.NewPacket(hircp.TypeAck, nil))
}

// serve is the receive loop. It returns nil on TRQ.
func (s *Session) serve(ctx context.Context) error {
	for {
		raw, err := s.conn.ReadPacket()
		if err != nil {
			return &TransportError{Op: "receive", Err: err}
		}
		s.opts.Capture.Write(s.opts.ID, capture.In, raw)

		p, err := hircp.Decode(raw)
		if err != nil {
			s.opts.Stats.RecordUndecodable()
			s.opts.Metrics.PacketDropped(metrics.DropBadLength)
			logging.Debug("session %d: dropped packet: %v", s.opts.ID, err)
			var offending byte
			if len(raw) > 0 {
				offending = raw[0]
			}
			if err := s.replyError(hircp.ErrCodeInvalidType, offending); err != nil {
				return err
			}
			continue
		}

		s.opts.Stats.RecordReceived(p)
		if !hircp.IsValid(p) {
			s.opts.Metrics.PacketDropped(metrics.DropInvalidType)
			logging.Debug("session %d: dropped packet with type 0x%02X", s.opts.ID, byte(p.Type()))
			if err := s.replyError(hircp.ErrCodeInvalidType, byte(p.Type())); err != nil {
				return err
			}
			continue
		}
		s.opts.Metrics.PacketReceived(p.Type().String())

		switch p.Type() {
		case hircp.TypeData:
			if err := s.handleData(ctx, p); err != nil {
				return err
			}
		case hircp.TypeMode:
			if err := s.handleMode(p); err != nil {
				return err
			}
		case hircp.TypeTerminate:
			s.terminate()
			return nil
		default:
			s.opts.Metrics.PacketDropped(metrics.DropUnexpected)
			logging.Debug("session %d: ignoring %s from client", s.opts.ID, p.Type())
		}
	}
}

// handleData dispatches one DATA packet and answers with a DACK.
func (s *Session) handleData(ctx context.Context, p *hircp.Packet) error {
	mode := s.Mode()
	_, span := s.tracer.Start(ctx, "hircp.dispatch",
		trace.WithAttributes(attribute.String("hircp.mode", mode.String())))
	defer span.End()

	start := time.Now()
	res, err := dispatch.Dispatch(mode, p.Payload(), s.opts.Hand)
	if err != nil {
		// Mode is only ever set to a valid value.
		span.SetStatus(codes.Error, err.Error())
		logging.Error("session %d: %v", s.opts.ID, err)
		return nil
	}

	for _, derr := range res.DriverErrors {
		logging.Warn("session %d: %v", s.opts.ID, derr)
		s.opts.Stats.RecordDriverError()
		s.opts.Metrics.DriverError(driverOp(derr))
	}
	if len(res.DriverErrors) > 0 {
		span.SetAttributes(attribute.Int("hircp.driver_errors", len(res.DriverErrors)))
	}

	s.mu.Lock()
	if mode == hircp.ModeNormal {
		s.targets = res.Targets
	} else {
		s.lastGrasp = res.Grasp
		s.hasGrasp = true
	}
	s.sensors = res.Sensors
	s.dispatched++
	s.mu.Unlock()

	if mode == hircp.ModeClosedLoop {
		span.SetAttributes(
			attribute.Int("hircp.degrees_sum", int(res.DegreesSum)),
			attribute.String("hircp.grasp", res.Grasp.String()))
		s.opts.Stats.RecordGrasp(res.Grasp == grasp.Close)
		s.opts.Metrics.GraspCommand(res.Grasp.String())
		logging.Debug("session %d: sum=%d grasp=%s", s.opts.ID, res.DegreesSum, res.Grasp)
	}
	s.opts.Metrics.ObserveDispatch(time.Since(start).Seconds())

	if err := s.send(hircp.NewPacket(hircp.TypeDataAck, res.Response)); err != nil {
		span.SetStatus(codes.Error, "send failed")
		return err
	}
	return nil
}

// handleMode applies a MODE packet. An unsupported value leaves the mode
// unchanged.
func (s *Session) handleMode(p *hircp.Packet) error {
	m := p.Mode()
	if !m.Valid() {
		s.opts.Stats.RecordInvalidMode()
		s.opts.Metrics.PacketDropped(metrics.DropInvalidMode)
		logging.Warn("session %d: unsupported mode 0x%02X ignored", s.opts.ID, byte(m))
		return s.replyError(hircp.ErrCodeInvalidMode, byte(m))
	}

	s.mu.Lock()
	prev := s.mode
	s.mode = m
	s.mu.Unlock()

	s.opts.Metrics.ModeChanged(m.String())
	if prev != m {
		logging.Info("session %d: mode %s -> %s", s.opts.ID, prev, m)
	}
	return nil
}

// terminate acknowledges a TRQ. The acknowledgement is best-effort.
func (s *Session) terminate() {
	s.setState(Terminating)
	if err := s.send(hircp.NewPacket(hircp.TypeAck, nil)); err != nil {
		logging.Warn("session %d: termination ack not sent: %v", s.opts.ID, err)
	}
}

// replyError sends an ERROR packet when error replies are enabled.
func (s *Session) replyError(code hircp.ErrorCode, offending byte) error {
	if !s.opts.ErrorReplies {
		return nil
	}
	return s.send(hircp.NewErrorPacket(code, offending))
}

func (s *Session) send(p *hircp.Packet) error {
	raw := hircp.Encode(p)
	if err := s.conn.WritePacket(raw); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	s.opts.Capture.Write(s.opts.ID, capture.Out, raw)
	s.opts.Stats.RecordSent(p.Type())
	s.opts.Metrics.ResponseSent(p.Type().String())
	return nil
}

// finish tears the link down, resets the session to Idle in Normal mode and
// records the outcome.
func (s *Session) finish(ctx context.Context, err error, handshakeOK bool) error {
	s.conn.Close()

	s.mu.Lock()
	s.state = Idle
	s.mode = hircp.DefaultMode
	s.mu.Unlock()

	var te *TransportError
	transportErr := errors.As(err, &te)

	result := metrics.ResultTerminated
	switch {
	case ctx.Err() != nil:
		result = metrics.ResultCancelled
		err = ctx.Err()
	case !handshakeOK:
		result = metrics.ResultHandshakeFailed
	case transportErr:
		result = metrics.ResultTransportError
	}

	s.opts.Stats.RecordSession(handshakeOK, handshakeOK && err == nil, transportErr && ctx.Err() == nil)
	s.opts.Metrics.SessionEnded(result)

	switch {
	case err == nil:
		logging.Info("session %d: terminated by client", s.opts.ID)
	case result == metrics.ResultCancelled:
		logging.Info("session %d: cancelled", s.opts.ID)
	default:
		logging.Warn("session %d: ended: %v", s.opts.ID, err)
	}
	return err
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Mode returns the current operating mode.
func (s *Session) Mode() hircp.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Snapshot returns a copy of the observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		ID:            s.opts.ID,
		State:         s.state,
		Mode:          s.mode.String(),
		Remote:        s.conn.RemoteAddr(),
		StartedAt:     s.startedAt,
		FingerTargets: s.targets,
		Sensors:       s.sensors,
		Dispatched:    s.dispatched,
	}
	if s.hasGrasp {
		snap.LastGrasp = s.lastGrasp.String()
	}
	return snap
}

// driverOp derives a metric label from a driver error.
func driverOp(err error) string {
	var ce *driver.ChannelError
	if errors.As(err, &ce) {
		return strings.ReplaceAll(ce.Op, " ", "_")
	}
	return "set_grasp"
}
