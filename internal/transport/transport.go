// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport carries fixed-width HIRCP packet buffers between the
// controller and one client at a time.
package transport

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTimeout is returned by ReadPacket when the read timeout expires.
	ErrTimeout = errors.New("transport: read timeout")
	// ErrClosed is returned after a Conn or Listener has been closed.
	ErrClosed = errors.New("transport: closed")
)

// DefaultPort is the well-known controller port for TCP and WebSocket.
const DefaultPort = 5001

// Conn is one accepted client link.
type Conn interface {
	// ReadPacket blocks until one packet buffer arrives. Stream transports
	// return exactly hircp.MaxPacketSize bytes; message transports return
	// each message as received.
	ReadPacket() ([]byte, error)
	WritePacket(b []byte) error
	// SetReadTimeout bounds every following ReadPacket. Zero disables it.
	SetReadTimeout(d time.Duration)
	Close() error
	RemoteAddr() string
}

// Listener hands out client links.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() string
	Close() error
}
