// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package grasp implements the closed-loop grasp decision.
package grasp

import "github.com/Thermoquad/hircpd/pkg/hircp"

// Command is the discrete grasp action sent to the actuators.
type Command uint8

const (
	Open  Command = 0x00
	Close Command = 0x01
)

func (c Command) String() string {
	if c == Close {
		return "CLOSE"
	}
	return "OPEN"
}

// Threshold is the degree sum at which the hand closes.
const Threshold = 400

// SummedFingers is how many leading payload bytes contribute to the sum.
const SummedFingers = hircp.NumServos - 1

// Decide returns Open when sum is below Threshold and Close otherwise.
func Decide(sum uint16) Command {
	if sum < Threshold {
		return Open
	}
	return Close
}

// DegreesSum adds payload bytes 0..SummedFingers-1 into a 16-bit accumulator.
// Overflow wraps. Short payloads are treated as zero-padded.
func DegreesSum(payload []byte) uint16 {
	var sum uint16
	for i := 0; i < SummedFingers && i < len(payload); i++ {
		sum += uint16(payload[i])
	}
	return sum
}
