// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package driver

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/hircpd/internal/grasp"
	"github.com/Thermoquad/hircpd/internal/logging"
	"github.com/Thermoquad/hircpd/pkg/bridge"
	"go.bug.st/serial"
)

var (
	// ErrBridgeTimeout is returned when the bridge does not answer a sensor read.
	ErrBridgeTimeout = errors.New("bridge: response timeout")
	// ErrBridgeRejected is returned when the bridge answers with an error frame.
	ErrBridgeRejected = errors.New("bridge: request rejected")
)

// Port is the byte stream to the bridge board. serial.Port satisfies it.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Bridge drives a servo/ADC bridge board over a serial link.
// Calls are serialized; the board handles one request at a time.
type Bridge struct {
	mu      sync.Mutex
	port    Port
	decoder *bridge.Decoder
	timeout time.Duration
	buf     []byte
}

// OpenBridge opens the serial device and returns a bridge driver on it.
func OpenBridge(portName string, baudRate int, timeout time.Duration) (*Bridge, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open bridge port %s: %w", portName, err)
	}
	return NewBridge(port, timeout), nil
}

// NewBridge wraps an already open port.
func NewBridge(port Port, timeout time.Duration) *Bridge {
	return &Bridge{
		port:    port,
		decoder: bridge.NewDecoder(),
		timeout: timeout,
		buf:     make([]byte, 64),
	}
}

// SetFingerPosition sends a position request for one finger.
func (b *Bridge) SetFingerPosition(ch Channel, degrees uint8) error {
	if !ch.Valid() {
		return &ChannelError{Op: "set position", Channel: ch, Err: fmt.Errorf("no such channel")}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.send(bridge.Frame{Command: bridge.CmdSetPosition, Channel: uint8(ch), Value: uint16(degrees)}); err != nil {
		return &ChannelError{Op: "set position", Channel: ch, Err: err}
	}
	return nil
}

// SetGraspCommand sends a whole-hand grasp request.
func (b *Bridge) SetGraspCommand(cmd grasp.Command) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.send(bridge.Frame{Command: bridge.CmdSetGrasp, Value: uint16(cmd)}); err != nil {
		return fmt.Errorf("driver: set grasp %s: %w", cmd, err)
	}
	return nil
}

// ReadFingertipSensor requests one reading and waits for the matching
// response frame.
func (b *Bridge) ReadFingertipSensor(ch Channel) (uint16, error) {
	if !ch.Valid() {
		return 0, &ChannelError{Op: "read sensor", Channel: ch, Err: fmt.Errorf("no such channel")}
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.send(bridge.Frame{Command: bridge.CmdReadSensor, Channel: uint8(ch)}); err != nil {
		return 0, &ChannelError{Op: "read sensor", Channel: ch, Err: err}
	}
	value, err := b.awaitSensor(uint8(ch))
	if err != nil {
		return 0, &ChannelError{Op: "read sensor", Channel: ch, Err: err}
	}
	return value, nil
}

// Close releases the serial port.
func (b *Bridge) Close() error {
	return b.port.Close()
}

func (b *Bridge) send(f bridge.Frame) error {
	_, err := b.port.Write(bridge.Encode(f))
	return err
}

// awaitSensor reads frames until a sensor response for ch arrives or the
// timeout elapses. Stale responses for other channels are discarded.
func (b *Bridge) awaitSensor(ch uint8) (uint16, error) {
	deadline := time.Now().Add(b.timeout)
	b.decoder.Reset()

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, ErrBridgeTimeout
		}
		if err := b.port.SetReadTimeout(remaining); err != nil {
			return 0, err
		}

		n, err := b.port.Read(b.buf)
		if err != nil {
			return 0, err
		}
		// A zero-length read without error is a serial timeout.
		if n == 0 {
			return 0, ErrBridgeTimeout
		}

		for i := 0; i < n; i++ {
			frame, err := b.decoder.DecodeByte(b.buf[i])
			if err != nil {
				logging.Debug("bridge: dropped frame: %v", err)
				continue
			}
			if frame == nil {
				continue
			}
			switch {
			case frame.Command == bridge.RspError:
				return 0, fmt.Errorf("%w: code 0x%04X", ErrBridgeRejected, frame.Value)
			case frame.Command == bridge.RspSensor && frame.Channel == ch:
				return frame.Value, nil
			default:
				logging.Debug("bridge: ignoring %s", frame)
			}
		}
	}
}
