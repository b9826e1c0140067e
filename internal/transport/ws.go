// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Thermoquad/hircpd/internal/logging"
	"github.com/gorilla/websocket"
)

// DefaultWSPath is where the upgrade endpoint is mounted.
const DefaultWSPath = "/hircp"

type wsHandoff struct {
	conn *WSConn
	err  error
}

// WebSocketListener serves an upgrade endpoint. Each binary message is one
// packet buffer.
type WebSocketListener struct {
	ln       net.Listener
	srv      *http.Server
	upgrader websocket.Upgrader
	waiting  chan chan wsHandoff
	done     chan struct{}
	once     sync.Once
}

// ListenWebSocket binds addr and serves the upgrade endpoint at path.
func ListenWebSocket(addr, path string) (*WebSocketListener, error) {
	if path == "" {
		path = DefaultWSPath
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	l := &WebSocketListener{
		ln: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		waiting: make(chan chan wsHandoff),
		done:    make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, l.handleUpgrade)
	l.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("websocket server: %v", err)
		}
	}()
	return l, nil
}

// handleUpgrade upgrades only when the controller is waiting in Accept. A busy
// controller answers 503 so the client can retry.
func (l *WebSocketListener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	var reply chan wsHandoff
	select {
	case reply = <-l.waiting:
	default:
		http.Error(w, "controller busy", http.StatusServiceUnavailable)
		return
	}

	c, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		reply <- wsHandoff{err: err}
		return
	}
	reply <- wsHandoff{conn: NewWSConn(c)}
}

// Accept waits for the next client or for ctx to end.
func (l *WebSocketListener) Accept(ctx context.Context) (Conn, error) {
	for {
		reply := make(chan wsHandoff, 1)
		select {
		case l.waiting <- reply:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-l.done:
			return nil, ErrClosed
		}

		select {
		case h := <-reply:
			if h.err != nil {
				logging.Debug("websocket upgrade failed: %v", h.err)
				continue
			}
			return h.conn, nil
		case <-ctx.Done():
			go func() {
				if h := <-reply; h.conn != nil {
					h.conn.Close()
				}
			}()
			return nil, ctx.Err()
		}
	}
}

func (l *WebSocketListener) Addr() string {
	return l.ln.Addr().String()
}

func (l *WebSocketListener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = l.srv.Close()
	})
	return err
}

// WSConn adapts a WebSocket connection to Conn.
type WSConn struct {
	conn    *websocket.Conn
	mu      sync.Mutex
	timeout time.Duration
}

// NewWSConn wraps an established WebSocket connection.
func NewWSConn(c *websocket.Conn) *WSConn {
	return &WSConn{conn: c}
}

func (w *WSConn) SetReadTimeout(d time.Duration) {
	w.mu.Lock()
	w.timeout = d
	w.mu.Unlock()
}

// ReadPacket returns the next binary message. Text messages are skipped.
func (w *WSConn) ReadPacket() ([]byte, error) {
	w.mu.Lock()
	timeout := w.timeout
	w.mu.Unlock()

	for {
		if timeout > 0 {
			w.conn.SetReadDeadline(time.Now().Add(timeout))
		} else {
			w.conn.SetReadDeadline(time.Time{})
		}

		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return nil, ErrTimeout
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, ErrClosed
			}
			return nil, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		return data, nil
	}
}

func (w *WSConn) WritePacket(b []byte) error {
	return w.conn.WriteMessage(websocket.BinaryMessage, b)
}

func (w *WSConn) Close() error {
	w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return w.conn.Close()
}

func (w *WSConn) RemoteAddr() string {
	return w.conn.RemoteAddr().String()
}
