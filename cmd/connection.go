// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/Thermoquad/hircpd/pkg/hircp"
	"github.com/gorilla/websocket"
)

// Connection exchanges whole HIRCP packets with a controller
type Connection interface {
	Send(p *hircp.Packet) error
	Receive(timeout time.Duration) (*hircp.Packet, error)
	io.Closer
}

// TCPConnection speaks HIRCP over a TCP stream
type TCPConnection struct {
	conn net.Conn
}

func (t *TCPConnection) Send(p *hircp.Packet) error {
	_, err := t.conn.Write(hircp.Encode(p))
	return err
}

func (t *TCPConnection) Receive(timeout time.Duration) (*hircp.Packet, error) {
	t.conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, hircp.MaxPacketSize)
	if _, err := io.ReadFull(t.conn, buf); err != nil {
		return nil, err
	}
	return hircp.Decode(buf)
}

func (t *TCPConnection) Close() error {
	return t.conn.Close()
}

// WebSocketConnection speaks HIRCP with one binary message per packet
type WebSocketConnection struct {
	conn *websocket.Conn
}

func (w *WebSocketConnection) Send(p *hircp.Packet) error {
	return w.conn.WriteMessage(websocket.BinaryMessage, hircp.Encode(p))
}

func (w *WebSocketConnection) Receive(timeout time.Duration) (*hircp.Packet, error) {
	w.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		// Skip non-binary messages
		if messageType != websocket.BinaryMessage {
			continue
		}
		return hircp.Decode(data)
	}
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenTCPConnection dials a controller's TCP listener
func OpenTCPConnection(addr string) (Connection, error) {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	return &TCPConnection{conn: conn}, nil
}

// OpenWebSocketConnection dials a controller's WebSocket endpoint
func OpenWebSocketConnection(wsURL string, skipSSLVerify bool) (Connection, error) {
	// Parse and validate URL
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	// Validate scheme
	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %v", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// OpenConnection opens either a TCP or WebSocket connection
func OpenConnection(addr, wsURL string, skipSSLVerify bool) (Connection, string, error) {
	if wsURL != "" {
		conn, err := OpenWebSocketConnection(wsURL, skipSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if addr != "" {
		conn, err := OpenTCPConnection(addr)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("TCP: %s", addr), nil
	}

	return nil, "", fmt.Errorf("either --addr or --url must be specified")
}
