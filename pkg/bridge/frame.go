// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"encoding/binary"
	"fmt"
)

// Frame is one decoded bridge message.
type Frame struct {
	Command Command
	Channel uint8
	Value   uint16
}

func (f Frame) String() string {
	return fmt.Sprintf("%s ch=%d value=%d", f.Command, f.Channel, f.Value)
}

// body returns the four unstuffed body bytes.
func (f Frame) body() []byte {
	b := make([]byte, BodySize, frameSize)
	b[0] = byte(f.Command)
	b[1] = f.Channel
	binary.BigEndian.PutUint16(b[2:], f.Value)
	return b
}

// Encode returns the complete wire form of f, including framing and byte
// stuffing.
func Encode(f Frame) []byte {
	data := f.body()
	crc := CalculateCRC(data)
	data = append(data, byte(crc>>8), byte(crc&0xFF))

	stuffed := stuffBytes(data)
	out := make([]byte, 0, len(stuffed)+2)
	out = append(out, StartByte)
	out = append(out, stuffed...)
	out = append(out, EndByte)
	return out
}

// stuffBytes applies byte stuffing to escape special bytes.
// Special bytes (START, END, ESC) are replaced with ESC + (byte XOR EscXor).
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)
	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			result = append(result, EscByte, b^EscXor)
		} else {
			result = append(result, b)
		}
	}
	return result
}
