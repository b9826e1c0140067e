// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hircp

import (
	"encoding/binary"
	"fmt"
)

// Encode serializes a packet to its fixed-width wire form.
func Encode(p *Packet) []byte {
	buf := make([]byte, MaxPacketSize)
	buf[0] = byte(p.msgType)
	copy(buf[HeaderSize:], p.payload[:])
	return buf
}

// Decode interprets a raw buffer as a packet.
//
// The buffer must be exactly MaxPacketSize bytes; anything else is a
// *LengthError. An undefined type byte is not an error here: the packet is
// returned as-is and IsValid reports false for it.
func Decode(raw []byte) (*Packet, error) {
	if len(raw) != MaxPacketSize {
		return nil, &LengthError{Op: "decode", Got: len(raw), Max: MaxPacketSize}
	}
	p := &Packet{msgType: Type(raw[0])}
	copy(p.payload[:], raw[HeaderSize:])
	return p, nil
}

// IsValid is the sole validity gate: true iff the packet type is defined.
func IsValid(p *Packet) bool {
	return p != nil && p.msgType.Valid()
}

// EncodeSensorPayload packs readings as big-endian 16-bit values at offsets
// 2*i and 2*i+1.
func EncodeSensorPayload(readings [NumSensors]uint16) []byte {
	payload := make([]byte, NumSensors*2)
	for i, r := range readings {
		binary.BigEndian.PutUint16(payload[i*2:], r)
	}
	return payload
}

// DecodeSensorPayload is the inverse of EncodeSensorPayload.
func DecodeSensorPayload(payload []byte) ([NumSensors]uint16, error) {
	var readings [NumSensors]uint16
	if len(payload) < NumSensors*2 {
		return readings, fmt.Errorf("sensor payload too short: %d bytes (need %d)", len(payload), NumSensors*2)
	}
	for i := range readings {
		readings[i] = binary.BigEndian.Uint16(payload[i*2:])
	}
	return readings, nil
}
