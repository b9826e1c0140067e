// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hircp

import "bytes"

// Packet represents one HIRCP packet.
// The payload is always the full fixed-width region; bytes beyond the
// logical payload are zero.
type Packet struct {
	msgType Type
	payload [MaxPayloadSize]byte
}

// NewPacket creates a packet of the given type. The payload is copied and
// zero-padded, and truncated to MaxPayloadSize. Use NewPacketChecked when
// oversize input must be rejected.
func NewPacket(t Type, payload []byte) *Packet {
	p := &Packet{msgType: t}
	copy(p.payload[:], payload)
	return p
}

// NewPacketChecked is NewPacket that rejects payloads longer than MaxPayloadSize.
func NewPacketChecked(t Type, payload []byte) (*Packet, error) {
	if len(payload) > MaxPayloadSize {
		return nil, &LengthError{Op: "payload", Got: len(payload), Max: MaxPayloadSize}
	}
	return NewPacket(t, payload), nil
}

// NewModePacket creates a MODE packet selecting m.
func NewModePacket(m Mode) *Packet {
	return NewPacket(TypeMode, []byte{byte(m)})
}

// NewErrorPacket creates an ERROR packet with the error code and the byte that
// caused it.
func NewErrorPacket(code ErrorCode, offending byte) *Packet {
	return NewPacket(TypeError, []byte{byte(code), offending})
}

// Type returns the packet type. It may be out of range for decoded packets.
func (p *Packet) Type() Type {
	return p.msgType
}

// Payload returns a copy of the fixed-width payload region.
func (p *Packet) Payload() []byte {
	out := make([]byte, MaxPayloadSize)
	copy(out, p.payload[:])
	return out
}

// PayloadByte returns payload byte i, or 0 if i is out of range.
func (p *Packet) PayloadByte(i int) byte {
	if i < 0 || i >= MaxPayloadSize {
		return 0
	}
	return p.payload[i]
}

// Mode interprets payload byte 0 as an operating mode.
func (p *Packet) Mode() Mode {
	return Mode(p.payload[0])
}

// Equal reports whether two packets have the same type and payload bytes.
func (p *Packet) Equal(o *Packet) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.msgType == o.msgType && bytes.Equal(p.payload[:], o.payload[:])
}
