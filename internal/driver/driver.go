// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package driver defines the actuator and sensor interfaces the controller
// calls, and the hand implementations behind them.
package driver

import (
	"fmt"

	"github.com/Thermoquad/hircpd/internal/grasp"
	"github.com/Thermoquad/hircpd/pkg/hircp"
)

// Channel identifies one finger and its actuator/sensor pair.
type Channel uint8

const (
	Thumb Channel = iota
	Index
	Middle
	Ring
	Pinky
)

// Channels returns every finger in wire order.
func Channels() []Channel {
	return []Channel{Thumb, Index, Middle, Ring, Pinky}
}

func (c Channel) String() string {
	switch c {
	case Thumb:
		return "thumb"
	case Index:
		return "index"
	case Middle:
		return "middle"
	case Ring:
		return "ring"
	case Pinky:
		return "pinky"
	default:
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
}

// Valid reports whether c addresses a physical finger.
func (c Channel) Valid() bool {
	return int(c) < hircp.NumServos
}

// Actuator drives finger positions.
type Actuator interface {
	SetFingerPosition(ch Channel, degrees uint8) error
	SetGraspCommand(cmd grasp.Command) error
}

// Sensor reads fingertip pressure.
type Sensor interface {
	ReadFingertipSensor(ch Channel) (uint16, error)
}

// Hand is a complete actuator and sensor set.
type Hand interface {
	Actuator
	Sensor
}

// Closer is implemented by hands that hold a device open.
type Closer interface {
	Close() error
}

// ChannelError reports a driver failure on one finger.
type ChannelError struct {
	Op      string
	Channel Channel
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("driver: %s %s: %v", e.Op, e.Channel, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}
