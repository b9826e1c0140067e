// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package driver

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Thermoquad/hircpd/internal/grasp"
	"github.com/Thermoquad/hircpd/pkg/bridge"
	"github.com/Thermoquad/hircpd/pkg/hircp"
)

// ============================================================
// Simulated Hand Tests
// ============================================================

func TestSimulated_PositionClamp(t *testing.T) {
	h := NewSimulated()
	if err := h.SetFingerPosition(Index, 250); err != nil {
		t.Fatalf("SetFingerPosition error: %v", err)
	}
	if got := h.Positions()[Index]; got != GripPosition {
		t.Errorf("position = %d, want clamp to %d", got, GripPosition)
	}
}

func TestSimulated_InvalidChannel(t *testing.T) {
	h := NewSimulated()
	err := h.SetFingerPosition(Channel(7), 10)
	var ce *ChannelError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want *ChannelError", err)
	}
	if _, err := h.ReadFingertipSensor(Channel(5)); err == nil {
		t.Error("expected error reading channel 5")
	}
}

func TestSimulated_GraspMovesAllFingers(t *testing.T) {
	h := NewSimulated()

	h.SetGraspCommand(grasp.Close)
	for ch, pos := range h.Positions() {
		if pos != GripPosition {
			t.Errorf("after CLOSE finger %d at %d", ch, pos)
		}
	}
	if h.LastGrasp() != grasp.Close {
		t.Error("LastGrasp not recorded")
	}

	h.SetGraspCommand(grasp.Open)
	for ch, pos := range h.Positions() {
		if pos != RestPosition {
			t.Errorf("after OPEN finger %d at %d", ch, pos)
		}
	}
}

func TestSimulated_SensorFollowsPosition(t *testing.T) {
	h := NewSimulated()
	for _, ch := range Channels() {
		r, err := h.ReadFingertipSensor(ch)
		if err != nil || r != 0 {
			t.Fatalf("%s at rest read %d (%v), want 0", ch, r, err)
		}
	}

	h.SetFingerPosition(Middle, 90)
	half, _ := h.ReadFingertipSensor(Middle)
	h.SetFingerPosition(Middle, 180)
	full, _ := h.ReadFingertipSensor(Middle)

	if half == 0 || half >= full {
		t.Errorf("pressure not monotonic: half=%d full=%d", half, full)
	}
	if full > hircp.MaxSensorReading {
		t.Errorf("reading %d above 12-bit range", full)
	}
}

func TestChannel_String(t *testing.T) {
	names := []string{"thumb", "index", "middle", "ring", "pinky"}
	for i, ch := range Channels() {
		if ch.String() != names[i] {
			t.Errorf("Channel(%d) = %q, want %q", i, ch.String(), names[i])
		}
	}
}

// ============================================================
// Bridge Driver Tests
// ============================================================

// fakePort records writes and answers reads from a scripted buffer.
type fakePort struct {
	written bytes.Buffer
	replies bytes.Buffer
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.replies.Len() == 0 {
		return 0, nil
	}
	return p.replies.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) { return p.written.Write(b) }
func (p *fakePort) Close() error                { p.closed = true; return nil }
func (p *fakePort) SetReadTimeout(time.Duration) error {
	return nil
}

func writtenFrames(t *testing.T, data []byte) []bridge.Frame {
	t.Helper()
	d := bridge.NewDecoder()
	var out []bridge.Frame
	for _, b := range data {
		f, err := d.DecodeByte(b)
		if err != nil {
			t.Fatalf("host wrote bad frame: %v", err)
		}
		if f != nil {
			out = append(out, *f)
		}
	}
	return out
}

func TestBridge_SetCommands(t *testing.T) {
	port := &fakePort{}
	b := NewBridge(port, 50*time.Millisecond)

	if err := b.SetFingerPosition(Ring, 120); err != nil {
		t.Fatalf("SetFingerPosition error: %v", err)
	}
	if err := b.SetGraspCommand(grasp.Close); err != nil {
		t.Fatalf("SetGraspCommand error: %v", err)
	}

	frames := writtenFrames(t, port.written.Bytes())
	want := []bridge.Frame{
		{Command: bridge.CmdSetPosition, Channel: uint8(Ring), Value: 120},
		{Command: bridge.CmdSetGrasp, Value: uint16(grasp.Close)},
	}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d", len(frames), len(want))
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("frame %d = %v, want %v", i, frames[i], want[i])
		}
	}
}

func TestBridge_ReadSensor(t *testing.T) {
	port := &fakePort{}
	port.replies.Write(bridge.Encode(bridge.Frame{Command: bridge.RspSensor, Channel: uint8(Index), Value: 99}))
	port.replies.Write(bridge.Encode(bridge.Frame{Command: bridge.RspSensor, Channel: uint8(Thumb), Value: 1234}))
	b := NewBridge(port, 50*time.Millisecond)

	v, err := b.ReadFingertipSensor(Thumb)
	if err != nil {
		t.Fatalf("ReadFingertipSensor error: %v", err)
	}
	if v != 1234 {
		t.Errorf("reading = %d, want 1234 (stale index reply must be skipped)", v)
	}

	frames := writtenFrames(t, port.written.Bytes())
	if len(frames) != 1 || frames[0].Command != bridge.CmdReadSensor || frames[0].Channel != uint8(Thumb) {
		t.Errorf("request frames = %v", frames)
	}
}

func TestBridge_ReadSensorTimeout(t *testing.T) {
	b := NewBridge(&fakePort{}, 10*time.Millisecond)
	_, err := b.ReadFingertipSensor(Pinky)
	if !errors.Is(err, ErrBridgeTimeout) {
		t.Errorf("error = %v, want ErrBridgeTimeout", err)
	}
}

func TestBridge_ReadSensorRejected(t *testing.T) {
	port := &fakePort{}
	port.replies.Write(bridge.Encode(bridge.Frame{Command: bridge.RspError, Value: 0x0002}))
	b := NewBridge(port, 50*time.Millisecond)

	_, err := b.ReadFingertipSensor(Middle)
	if !errors.Is(err, ErrBridgeRejected) {
		t.Errorf("error = %v, want ErrBridgeRejected", err)
	}
}

func TestBridge_ReadError(t *testing.T) {
	b := NewBridge(&errPort{}, 50*time.Millisecond)
	_, err := b.ReadFingertipSensor(Thumb)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("error = %v, want wrapped io.ErrUnexpectedEOF", err)
	}
}

type errPort struct{ fakePort }

func (p *errPort) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

var _ Hand = (*Simulated)(nil)
var _ Hand = (*Bridge)(nil)
var _ Port = (*fakePort)(nil)
