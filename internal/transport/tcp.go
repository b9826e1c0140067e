// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Thermoquad/hircpd/pkg/hircp"
)

// TCPListener accepts HIRCP clients over TCP.
type TCPListener struct {
	ln net.Listener
}

// ListenTCP binds addr.
func ListenTCP(addr string) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &TCPListener{ln: ln}, nil
}

// Accept waits for the next client or for ctx to end.
func (l *TCPListener) Accept(ctx context.Context) (Conn, error) {
	stop := context.AfterFunc(ctx, func() {
		if dl, ok := l.ln.(interface{ SetDeadline(time.Time) error }); ok {
			dl.SetDeadline(time.Now())
		}
	})
	defer stop()

	c, err := l.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			if dl, ok := l.ln.(interface{ SetDeadline(time.Time) error }); ok {
				dl.SetDeadline(time.Time{})
			}
			return nil, ctx.Err()
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}
	if tc, ok := c.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	return NewStreamConn(c), nil
}

func (l *TCPListener) Addr() string {
	return l.ln.Addr().String()
}

func (l *TCPListener) Close() error {
	return l.ln.Close()
}

// StreamConn frames a byte stream into fixed-width packets.
type StreamConn struct {
	c       net.Conn
	mu      sync.Mutex
	timeout time.Duration
	buf     [hircp.MaxPacketSize]byte
}

// NewStreamConn wraps a connected stream.
func NewStreamConn(c net.Conn) *StreamConn {
	return &StreamConn{c: c}
}

func (s *StreamConn) SetReadTimeout(d time.Duration) {
	s.mu.Lock()
	s.timeout = d
	s.mu.Unlock()
}

// ReadPacket reads exactly one packet. A short read at EOF is an error.
func (s *StreamConn) ReadPacket() ([]byte, error) {
	s.mu.Lock()
	timeout := s.timeout
	s.mu.Unlock()

	if timeout > 0 {
		s.c.SetReadDeadline(time.Now().Add(timeout))
	} else {
		s.c.SetReadDeadline(time.Time{})
	}

	if _, err := io.ReadFull(s.c, s.buf[:]); err != nil {
		return nil, s.mapErr(err)
	}
	out := make([]byte, hircp.MaxPacketSize)
	copy(out, s.buf[:])
	return out, nil
}

func (s *StreamConn) WritePacket(b []byte) error {
	_, err := s.c.Write(b)
	return s.mapErr(err)
}

func (s *StreamConn) Close() error {
	return s.c.Close()
}

func (s *StreamConn) RemoteAddr() string {
	return s.c.RemoteAddr().String()
}

func (s *StreamConn) mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return err
}
