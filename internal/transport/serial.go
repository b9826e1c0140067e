// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/hircpd/pkg/hircp"
	"go.bug.st/serial"
)

// SerialPort is the subset of serial.Port the transport uses.
type SerialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// SerialListener speaks HIRCP over a UART. There is no connection setup on a
// serial line: Accept opens the port and the first packet is the handshake.
type SerialListener struct {
	name   string
	open   func() (SerialPort, error)
	mu     sync.Mutex
	closed bool
}

// ListenSerial prepares a listener on the named device.
func ListenSerial(portName string, baudRate int) *SerialListener {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return NewSerialListener(portName, func() (SerialPort, error) {
		return serial.Open(portName, mode)
	})
}

// NewSerialListener uses open to obtain the port on every Accept.
func NewSerialListener(name string, open func() (SerialPort, error)) *SerialListener {
	return &SerialListener{name: name, open: open}
}

func (l *SerialListener) Accept(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	port, err := l.open()
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", l.name, err)
	}
	return &SerialConn{port: port, name: l.name}, nil
}

func (l *SerialListener) Addr() string {
	return l.name
}

func (l *SerialListener) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

// SerialConn reads fixed-width packets from a serial port.
type SerialConn struct {
	port    SerialPort
	name    string
	mu      sync.Mutex
	timeout time.Duration
	buf     []byte
}

func (s *SerialConn) SetReadTimeout(d time.Duration) {
	s.mu.Lock()
	s.timeout = d
	s.mu.Unlock()
}

// ReadPacket accumulates bytes until a full packet is buffered. A serial read
// that returns no data signals the port timeout.
func (s *SerialConn) ReadPacket() ([]byte, error) {
	s.mu.Lock()
	timeout := s.timeout
	s.mu.Unlock()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	chunk := make([]byte, hircp.MaxPacketSize)

	for len(s.buf) < hircp.MaxPacketSize {
		wait := serial.NoTimeout
		if !deadline.IsZero() {
			wait = time.Until(deadline)
			if wait <= 0 {
				return nil, ErrTimeout
			}
		}
		if err := s.port.SetReadTimeout(wait); err != nil {
			return nil, err
		}

		n, err := s.port.Read(chunk[:hircp.MaxPacketSize-len(s.buf)])
		if err != nil {
			return nil, err
		}
		if n == 0 {
			if deadline.IsZero() {
				continue
			}
			return nil, ErrTimeout
		}
		s.buf = append(s.buf, chunk[:n]...)
	}

	out := s.buf[:hircp.MaxPacketSize]
	s.buf = nil
	return out, nil
}

func (s *SerialConn) WritePacket(b []byte) error {
	_, err := s.port.Write(b)
	return err
}

func (s *SerialConn) Close() error {
	return s.port.Close()
}

func (s *SerialConn) RemoteAddr() string {
	return s.name
}
