// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package driver

import (
	"fmt"
	"sync"

	"github.com/Thermoquad/hircpd/internal/grasp"
	"github.com/Thermoquad/hircpd/pkg/hircp"
)

// Finger travel limits in degrees.
const (
	RestPosition = 0
	GripPosition = hircp.MaxFingerDegrees
)

// Simulated is an in-memory hand. Each fingertip reading follows the finger
// position: a fully open finger reads zero, a fully closed one reads a
// per-finger contact pressure.
type Simulated struct {
	mu        sync.Mutex
	positions [hircp.NumServos]uint8
	lastGrasp grasp.Command
}

// contactPressure is the full-grip reading per finger. The thumb pad is the
// largest sensor.
var contactPressure = [hircp.NumSensors]uint16{3600, 3000, 3200, 2800, 2200}

// NewSimulated creates a simulated hand with every finger at rest.
func NewSimulated() *Simulated {
	return &Simulated{}
}

// SetFingerPosition moves one finger, clamping to the travel limits.
func (s *Simulated) SetFingerPosition(ch Channel, degrees uint8) error {
	if !ch.Valid() {
		return &ChannelError{Op: "set position", Channel: ch, Err: fmt.Errorf("no such channel")}
	}
	if degrees > GripPosition {
		degrees = GripPosition
	}
	s.mu.Lock()
	s.positions[ch] = degrees
	s.mu.Unlock()
	return nil
}

// SetGraspCommand moves every finger to the rest or grip position.
func (s *Simulated) SetGraspCommand(cmd grasp.Command) error {
	target := uint8(RestPosition)
	if cmd == grasp.Close {
		target = GripPosition
	}
	s.mu.Lock()
	for i := range s.positions {
		s.positions[i] = target
	}
	s.lastGrasp = cmd
	s.mu.Unlock()
	return nil
}

// ReadFingertipSensor returns the modelled 12-bit pressure for ch.
func (s *Simulated) ReadFingertipSensor(ch Channel) (uint16, error) {
	if !ch.Valid() {
		return 0, &ChannelError{Op: "read sensor", Channel: ch, Err: fmt.Errorf("no such channel")}
	}
	s.mu.Lock()
	pos := uint32(s.positions[ch])
	s.mu.Unlock()

	reading := uint32(contactPressure[ch]) * pos / GripPosition
	if reading > hircp.MaxSensorReading {
		reading = hircp.MaxSensorReading
	}
	return uint16(reading), nil
}

// Positions returns the current finger positions.
func (s *Simulated) Positions() [hircp.NumServos]uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positions
}

// LastGrasp returns the most recent grasp command.
func (s *Simulated) LastGrasp() grasp.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastGrasp
}
