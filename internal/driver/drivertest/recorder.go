// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package drivertest provides a recording hand for tests.
package drivertest

import (
	"fmt"
	"sync"

	"github.com/Thermoquad/hircpd/internal/driver"
	"github.com/Thermoquad/hircpd/internal/grasp"
)

// Call is one recorded driver invocation.
type Call struct {
	Op      string // "position", "grasp" or "sensor"
	Channel driver.Channel
	Value   uint8
	Grasp   grasp.Command
}

func (c Call) String() string {
	switch c.Op {
	case "position":
		return fmt.Sprintf("position(%s, %d)", c.Channel, c.Value)
	case "grasp":
		return fmt.Sprintf("grasp(%s)", c.Grasp)
	default:
		return fmt.Sprintf("%s(%s)", c.Op, c.Channel)
	}
}

// Recorder is a driver.Hand that records every call and returns scripted
// sensor readings.
type Recorder struct {
	mu       sync.Mutex
	calls    []Call
	Readings [5]uint16

	// Fail, when set, is returned from every call whose Op matches FailOp.
	Fail   error
	FailOp string
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	if r.Fail != nil && (r.FailOp == "" || r.FailOp == c.Op) {
		return r.Fail
	}
	return nil
}

func (r *Recorder) SetFingerPosition(ch driver.Channel, degrees uint8) error {
	return r.record(Call{Op: "position", Channel: ch, Value: degrees})
}

func (r *Recorder) SetGraspCommand(cmd grasp.Command) error {
	return r.record(Call{Op: "grasp", Grasp: cmd})
}

func (r *Recorder) ReadFingertipSensor(ch driver.Channel) (uint16, error) {
	if err := r.record(Call{Op: "sensor", Channel: ch}); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Readings[ch], nil
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsOf returns the recorded calls with the given Op.
func (r *Recorder) CallsOf(op string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears the recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
