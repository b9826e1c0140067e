// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge implements the serial framing spoken to a hand I/O bridge:
// a small microcontroller that owns the finger servos and the fingertip
// pressure ADCs.
//
// Every frame carries a fixed four-byte body (command, channel, 16-bit value)
// protected by a CRC-16-CCITT and wrapped in START/END bytes with byte
// stuffing:
//
//	START | stuffed(cmd, channel, valHi, valLo, crcHi, crcLo) | END
package bridge

// Framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// BodySize is the unstuffed size of a frame body before the CRC.
const BodySize = 4

// frameSize is the unstuffed size of body plus CRC.
const frameSize = BodySize + 2

// CRC-16-CCITT
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Command identifies a bridge request or response.
type Command uint8

// Requests (host → bridge)
const (
	CmdSetPosition Command = 0x01 // value = degrees
	CmdSetGrasp    Command = 0x02 // value = 0 open, 1 close
	CmdReadSensor  Command = 0x03 // value ignored
)

// Responses (bridge → host)
const (
	RspAck    Command = 0x81
	RspSensor Command = 0x83 // value = 12-bit reading
	RspError  Command = 0xEE // value = bridge error code
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdSetPosition:
		return "SET_POSITION"
	case CmdSetGrasp:
		return "SET_GRASP"
	case CmdReadSensor:
		return "READ_SENSOR"
	case RspAck:
		return "ACK"
	case RspSensor:
		return "SENSOR"
	case RspError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Decoder states
const (
	stateIdle = iota
	stateBody
)
