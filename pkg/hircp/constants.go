// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package hircp implements the Human Interface for Robotic Control Protocol.
//
// HIRCP is a fixed-width binary protocol spoken between a remote client and the
// hand controller. Every packet on the wire is exactly MaxPacketSize bytes: one
// type byte followed by a zero-padded payload region. This package provides
// packet encoding/decoding, the validity gate, payload helpers, diagnostic
// validation, formatting and statistics.
package hircp

// Packet size limits
const (
	HeaderSize     = 1
	MaxPayloadSize = 15
	MaxPacketSize  = HeaderSize + MaxPayloadSize
)

// Hand geometry
const (
	NumServos  = 5
	NumSensors = 5
)

// MaxSensorReading is the full-scale value of a fingertip ADC sample (12-bit).
const MaxSensorReading = 0x0FFF

// Type is the packet type carried in byte 0 of every packet.
type Type uint8

// Packet types. Any other value makes a packet invalid.
const (
	TypeData      Type = 0x01 // per-finger data (client → controller)
	TypeMode      Type = 0x02 // operating mode change
	TypeTerminate Type = 0x03 // termination request (TRQ)
	TypeAck       Type = 0x04 // acknowledge
	TypeDataAck   Type = 0x05 // data acknowledge (DACK), carries the response payload
	TypeError     Type = 0x06 // error report
)

// Types returns every defined packet type in wire order.
func Types() []Type {
	return []Type{TypeData, TypeMode, TypeTerminate, TypeAck, TypeDataAck, TypeError}
}

// Valid reports whether t is one of the defined packet types.
func (t Type) Valid() bool {
	switch t {
	case TypeData, TypeMode, TypeTerminate, TypeAck, TypeDataAck, TypeError:
		return true
	default:
		return false
	}
}

// String returns the protocol name of the type.
func (t Type) String() string {
	switch t {
	case TypeData:
		return "DATA"
	case TypeMode:
		return "MODE"
	case TypeTerminate:
		return "TRQ"
	case TypeAck:
		return "ACK"
	case TypeDataAck:
		return "DACK"
	case TypeError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Mode is the controller operating mode carried in byte 0 of a MODE payload.
type Mode uint8

// Operating modes
const (
	ModeNormal     Mode = 0x00
	ModeClosedLoop Mode = 0x01
)

// DefaultMode is the mode every new session starts in.
const DefaultMode = ModeNormal

// Valid reports whether m is a supported operating mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeNormal, ModeClosedLoop:
		return true
	default:
		return false
	}
}

// String returns the protocol name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "NORMAL"
	case ModeClosedLoop:
		return "CLOSED_LOOP"
	default:
		return "UNKNOWN"
	}
}

// ErrorCode is carried in byte 0 of an ERROR payload.
type ErrorCode uint8

// Error codes
const (
	ErrCodeInvalidType ErrorCode = 0x01
	ErrCodeInvalidMode ErrorCode = 0x02
)

// String returns a short description of the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeInvalidType:
		return "INVALID_TYPE"
	case ErrCodeInvalidMode:
		return "INVALID_MODE"
	default:
		return "UNKNOWN"
	}
}

// Closed-loop DACK layout: sensor readings occupy the first NumSensors*2 bytes,
// followed by the grasp command byte.
const GraspStatusOffset = NumSensors * 2
