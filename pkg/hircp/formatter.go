// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hircp

import (
	"fmt"
	"strings"
)

var fingerNames = [NumServos]string{"thumb", "index", "middle", "ring", "pinky"}

// FormatPacket formats a packet into a human-readable string
func FormatPacket(p *Packet) string {
	result := fmt.Sprintf("%s (0x%02X)\n", FormatType(p.msgType), byte(p.msgType))
	result += FormatPayload(p.msgType, p.payload[:])
	return result
}

// FormatType returns the human-readable name for a packet type
func FormatType(t Type) string {
	return t.String()
}

// FormatPayload formats the payload based on packet type
func FormatPayload(t Type, payload []byte) string {
	switch t {
	case TypeData:
		if len(payload) < NumServos {
			break
		}
		var parts []string
		for i := 0; i < NumServos; i++ {
			parts = append(parts, fmt.Sprintf("%s=%d", fingerNames[i], payload[i]))
		}
		return "  Fingers: " + strings.Join(parts, " ") + "\n"

	case TypeMode:
		if len(payload) < 1 {
			break
		}
		m := Mode(payload[0])
		return fmt.Sprintf("  Mode: %s (0x%02X)\n", m, payload[0])

	case TypeDataAck:
		readings, err := DecodeSensorPayload(payload)
		if err != nil {
			break
		}
		var parts []string
		for i, r := range readings {
			parts = append(parts, fmt.Sprintf("%s=%d", fingerNames[i], r))
		}
		result := "  Sensors: " + strings.Join(parts, " ") + "\n"
		if len(payload) > GraspStatusOffset && payload[GraspStatusOffset] != 0 {
			result += fmt.Sprintf("  Grasp: 0x%02X\n", payload[GraspStatusOffset])
		}
		return result

	case TypeError:
		if len(payload) < 2 {
			break
		}
		return fmt.Sprintf("  Error: %s (0x%02X), offending byte 0x%02X\n",
			ErrorCode(payload[0]), payload[0], payload[1])

	case TypeTerminate, TypeAck:
		return "  (no payload)\n"
	}

	return "  Raw: " + formatHex(payload) + "\n"
}

// formatHex formats bytes as space-separated hex
func formatHex(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}
