// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/Thermoquad/hircpd/internal/driver/drivertest"
	"github.com/Thermoquad/hircpd/internal/session"
	"github.com/Thermoquad/hircpd/internal/transport"
	"github.com/Thermoquad/hircpd/pkg/hircp"
)

func exchange(t *testing.T, c net.Conn, p *hircp.Packet) *hircp.Packet {
	t.Helper()
	if _, err := c.Write(hircp.Encode(p)); err != nil {
		t.Fatalf("client write: %v", err)
	}
	buf := make([]byte, hircp.MaxPacketSize)
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(c, buf); err != nil {
		t.Fatalf("client read: %v", err)
	}
	reply, err := hircp.Decode(buf)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return reply
}

func startController(t *testing.T) (*Controller, *drivertest.Recorder, string, context.CancelFunc, chan error) {
	t.Helper()
	ln, err := transport.ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP error: %v", err)
	}
	hand := &drivertest.Recorder{Readings: [5]uint16{1, 2, 3, 4, 5}}
	c := New(Config{Listener: ln, Hand: hand, RecvTimeout: 2 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx)
		ln.Close()
	}()
	t.Cleanup(cancel)
	return c, hand, ln.Addr(), cancel, done
}

func TestController_SequentialSessions(t *testing.T) {
	c, hand, addr, cancel, done := startController(t)

	for i := 0; i < 2; i++ {
		client, err := net.Dial("tcp", addr)
		if err != nil {
			t.Fatalf("Dial error: %v", err)
		}
		if r := exchange(t, client, hircp.NewPacket(hircp.TypeAck, nil)); r.Type() != hircp.TypeAck {
			t.Fatalf("handshake reply = %v", r.Type())
		}
		r := exchange(t, client, hircp.NewPacket(hircp.TypeData, []byte{10, 20, 30, 40, 50}))
		if r.Type() != hircp.TypeDataAck {
			t.Fatalf("data reply = %v", r.Type())
		}
		if snap := c.Snapshot(); snap.Session.State != session.Active {
			t.Errorf("session %d state = %v, want ACTIVE", i+1, snap.Session.State)
		}
		if r := exchange(t, client, hircp.NewPacket(hircp.TypeTerminate, nil)); r.Type() != hircp.TypeAck {
			t.Fatalf("TRQ reply = %v", r.Type())
		}
		client.Close()
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.Stats().Snapshot().Terminations < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	snap := c.Snapshot()
	if snap.Sessions != 2 || snap.Statistics.Terminations != 2 {
		t.Errorf("sessions=%d terminations=%d, want 2/2", snap.Sessions, snap.Statistics.Terminations)
	}
	if snap.Session.State != session.Idle {
		t.Errorf("final state = %v, want IDLE", snap.Session.State)
	}
	if len(hand.CallsOf("position")) != 10 {
		t.Errorf("position calls = %d, want 10", len(hand.CallsOf("position")))
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not stop")
	}
}

func TestController_SurvivesHandshakeFailure(t *testing.T) {
	c, _, addr, _, _ := startController(t)

	bad, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	bad.Write(make([]byte, hircp.MaxPacketSize))
	buf := make([]byte, 1)
	bad.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := bad.Read(buf); err == nil {
		t.Error("controller answered an invalid handshake")
	}
	bad.Close()

	good, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer good.Close()
	if r := exchange(t, good, hircp.NewPacket(hircp.TypeMode, []byte{0})); r.Type() != hircp.TypeAck {
		t.Fatalf("handshake reply = %v", r.Type())
	}
	if c.Stats().Snapshot().HandshakeFailures != 1 {
		t.Errorf("HandshakeFailures = %d, want 1", c.Stats().Snapshot().HandshakeFailures)
	}
}

// flakyListener fails Accept a number of times before reporting closed.
type flakyListener struct {
	failures int
	calls    int
}

func (l *flakyListener) Accept(ctx context.Context) (transport.Conn, error) {
	l.calls++
	if l.calls <= l.failures {
		return nil, errors.New("device busy")
	}
	return nil, transport.ErrClosed
}

func (l *flakyListener) Addr() string { return "flaky" }
func (l *flakyListener) Close() error { return nil }

func TestController_AcceptBackoff(t *testing.T) {
	ln := &flakyListener{failures: 2}
	c := New(Config{Listener: ln, Hand: &drivertest.Recorder{}})
	c.backoff = time.Millisecond

	if err := c.Run(context.Background()); !errors.Is(err, transport.ErrClosed) {
		t.Fatalf("Run error = %v, want ErrClosed", err)
	}
	if ln.calls != 3 {
		t.Errorf("Accept called %d times, want 3", ln.calls)
	}
}
