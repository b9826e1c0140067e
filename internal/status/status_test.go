// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package status

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/hircpd/internal/controller"
	"github.com/Thermoquad/hircpd/internal/metrics"
	"github.com/Thermoquad/hircpd/internal/session"
	"github.com/prometheus/client_golang/prometheus"
)

type staticSource struct{ st controller.Status }

func (s staticSource) Snapshot() controller.Status { return s.st }

func newTestRouter() (http.Handler, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	m := metrics.New(metrics.WithRegistry(reg))
	src := staticSource{st: controller.Status{
		Listen:   "127.0.0.1:5001",
		Sessions: 3,
		Session: session.Snapshot{
			ID:            3,
			State:         session.Active,
			Mode:          "CLOSED_LOOP",
			FingerTargets: [5]uint8{1, 2, 3, 4, 5},
			LastGrasp:     "CLOSE",
		},
	}}
	return NewRouter(src, reg), m
}

func TestRouter_Healthz(t *testing.T) {
	r, _ := newTestRouter()
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestRouter_Status(t *testing.T) {
	r, _ := newTestRouter()
	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var body struct {
		Sessions uint64 `json:"sessions"`
		Session  struct {
			State         string `json:"state"`
			Mode          string `json:"mode"`
			FingerTargets []int  `json:"finger_targets"`
			LastGrasp     string `json:"last_grasp"`
		} `json:"session"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v\n%s", err, rec.Body.String())
	}
	if body.Sessions != 3 || body.Session.State != "ACTIVE" || body.Session.Mode != "CLOSED_LOOP" || body.Session.LastGrasp != "CLOSE" {
		t.Errorf("body = %+v", body)
	}
	if len(body.Session.FingerTargets) != 5 || body.Session.FingerTargets[4] != 5 {
		t.Errorf("finger targets = %v", body.Session.FingerTargets)
	}
}

func TestRouter_Metrics(t *testing.T) {
	r, m := newTestRouter()
	m.PacketReceived("DATA")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `hircpd_packets_received_total{type="DATA"} 1`) {
		t.Errorf("metrics output missing counter:\n%s", rec.Body.String())
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	r, _ := newTestRouter()
	srv, err := Listen("127.0.0.1:0", r)
	if err != nil {
		t.Fatalf("Listen error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
