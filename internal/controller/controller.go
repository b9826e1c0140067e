// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package controller runs the single-tenant accept loop: accept one link,
// run its session to completion, return to Idle, repeat.
package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Thermoquad/hircpd/internal/capture"
	"github.com/Thermoquad/hircpd/internal/driver"
	"github.com/Thermoquad/hircpd/internal/logging"
	"github.com/Thermoquad/hircpd/internal/metrics"
	"github.com/Thermoquad/hircpd/internal/session"
	"github.com/Thermoquad/hircpd/internal/transport"
	"github.com/Thermoquad/hircpd/pkg/hircp"
)

// AcceptBackoff is the pause after a failed Accept.
const AcceptBackoff = time.Second

// Config wires the controller to its collaborators.
type Config struct {
	Listener     transport.Listener
	Hand         driver.Hand
	RecvTimeout  time.Duration
	ErrorReplies bool
	Stats        *hircp.Statistics
	Metrics      *metrics.Collector
	Capture      *capture.Writer
}

// Status is what observers see of the controller.
type Status struct {
	Listen     string                   `json:"listen"`
	Sessions   uint64                   `json:"sessions"`
	Session    session.Snapshot         `json:"session"`
	Statistics hircp.StatisticsSnapshot `json:"statistics"`
}

// Controller owns the accept loop.
type Controller struct {
	cfg     Config
	backoff time.Duration

	mu       sync.Mutex
	current  *session.Session
	last     session.Snapshot
	sessions uint64
}

// New creates a controller. Stats is created when nil.
func New(cfg Config) *Controller {
	if cfg.Stats == nil {
		cfg.Stats = hircp.NewStatistics()
	}
	return &Controller{cfg: cfg, backoff: AcceptBackoff}
}

// Run serves sessions one after another until ctx ends. It only returns
// ctx.Err() or transport.ErrClosed.
func (c *Controller) Run(ctx context.Context) error {
	logging.Info("controller listening on %s", c.cfg.Listener.Addr())

	for {
		conn, err := c.cfg.Listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, transport.ErrClosed) {
				return err
			}
			logging.Error("accept failed: %v", err)
			select {
			case <-time.After(c.backoff):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		s := c.begin(conn)
		logging.Info("session %d: connection from %s", s.Snapshot().ID, conn.RemoteAddr())
		s.Run(ctx)
		c.end(s)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Controller) begin(conn transport.Conn) *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions++
	s := session.New(conn, session.Options{
		Hand:         c.cfg.Hand,
		RecvTimeout:  c.cfg.RecvTimeout,
		ErrorReplies: c.cfg.ErrorReplies,
		ID:           c.sessions,
		Stats:        c.cfg.Stats,
		Metrics:      c.cfg.Metrics,
		Capture:      c.cfg.Capture,
	})
	c.current = s
	return s
}

func (c *Controller) end(s *session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = s.Snapshot()
	c.current = nil
}

// Snapshot returns the live session, or the last one once it has ended.
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	cur, last, n := c.current, c.last, c.sessions
	c.mu.Unlock()

	st := Status{
		Listen:     c.cfg.Listener.Addr(),
		Sessions:   n,
		Session:    last,
		Statistics: c.cfg.Stats.Snapshot(),
	}
	if cur != nil {
		st.Session = cur.Snapshot()
	}
	return st
}

// Stats returns the shared statistics.
func (c *Controller) Stats() *hircp.Statistics {
	return c.cfg.Stats
}
