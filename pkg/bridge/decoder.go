// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrCRC is returned when a frame's checksum does not match its body.
	ErrCRC = errors.New("bridge: CRC mismatch")
	// ErrFrame is returned for frames with the wrong length or misplaced framing.
	ErrFrame = errors.New("bridge: malformed frame")
)

// Decoder reassembles frames from a byte stream.
type Decoder struct {
	state      int
	buffer     [frameSize]byte
	index      int
	escapeNext bool
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{state: stateIdle}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.index = 0
	d.escapeNext = false
}

// DecodeByte feeds one byte to the decoder.
// Returns a frame when one completes, nil while incomplete, or an error
// (wrapping ErrCRC or ErrFrame) when a frame is rejected.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	if b == StartByte {
		d.Reset()
		d.state = stateBody
		return nil, nil
	}

	if d.state == stateIdle {
		return nil, nil
	}

	if b == EndByte {
		n, escaped := d.index, d.escapeNext
		d.Reset()
		if n != frameSize || escaped {
			return nil, fmt.Errorf("%w: END after %d bytes", ErrFrame, n)
		}
		return d.finish()
	}

	if b == EscByte && !d.escapeNext {
		d.escapeNext = true
		return nil, nil
	}
	if d.escapeNext {
		b ^= EscXor
		d.escapeNext = false
	}

	if d.index >= frameSize {
		d.Reset()
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrFrame, frameSize)
	}
	d.buffer[d.index] = b
	d.index++
	return nil, nil
}

// finish validates the buffered body. The buffer contents survive Reset.
func (d *Decoder) finish() (*Frame, error) {
	got := binary.BigEndian.Uint16(d.buffer[BodySize:])
	want := CalculateCRC(d.buffer[:BodySize])
	if got != want {
		return nil, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrCRC, want, got)
	}
	return &Frame{
		Command: Command(d.buffer[0]),
		Channel: d.buffer[1],
		Value:   binary.BigEndian.Uint16(d.buffer[2:]),
	}, nil
}
