// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hircp

import "fmt"

// MaxFingerDegrees is the largest meaningful finger position.
const MaxFingerDegrees = 180

// AnomalyType represents different types of packet anomalies
type AnomalyType int

const (
	AnomalyInvalidType AnomalyType = iota
	AnomalyInvalidMode
	AnomalyPositionRange
	AnomalySensorRange
	AnomalyTrailingBytes
)

// ValidationError represents a payload-level anomaly.
//
// These are diagnostics only. The session never rejects a packet because of
// them; IsValid is the only gate.
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidatePacket inspects a packet for anomalies.
// Returns a slice of validation errors (empty if nothing looks wrong)
func ValidatePacket(p *Packet) []ValidationError {
	errors := []ValidationError{}

	if !p.msgType.Valid() {
		return append(errors, ValidationError{
			Type:    AnomalyInvalidType,
			Message: fmt.Sprintf("Undefined packet type 0x%02X", byte(p.msgType)),
			Details: map[string]interface{}{"type": byte(p.msgType)},
		})
	}

	switch p.msgType {
	case TypeData:
		errors = append(errors, validateData(p)...)
	case TypeMode:
		errors = append(errors, validateMode(p)...)
	case TypeDataAck:
		errors = append(errors, validateDataAck(p)...)
	case TypeTerminate, TypeAck:
		errors = append(errors, validateEmpty(p)...)
	}

	return errors
}

// validateData flags finger positions outside 0..MaxFingerDegrees
func validateData(p *Packet) []ValidationError {
	errors := []ValidationError{}
	for i := 0; i < NumServos; i++ {
		if v := p.payload[i]; v > MaxFingerDegrees {
			errors = append(errors, ValidationError{
				Type:    AnomalyPositionRange,
				Message: fmt.Sprintf("Finger %d position %d out of range (max %d)", i, v, MaxFingerDegrees),
				Details: map[string]interface{}{"channel": i, "value": v, "max": MaxFingerDegrees},
			})
		}
	}
	return errors
}

func validateMode(p *Packet) []ValidationError {
	if p.Mode().Valid() {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyInvalidMode,
		Message: fmt.Sprintf("Unsupported mode value 0x%02X", p.payload[0]),
		Details: map[string]interface{}{"mode": p.payload[0]},
	}}
}

// validateDataAck flags sensor readings above the ADC full scale
func validateDataAck(p *Packet) []ValidationError {
	errors := []ValidationError{}
	readings, _ := DecodeSensorPayload(p.payload[:])
	for i, r := range readings {
		if r > MaxSensorReading {
			errors = append(errors, ValidationError{
				Type:    AnomalySensorRange,
				Message: fmt.Sprintf("Sensor %d reading %d above full scale %d", i, r, MaxSensorReading),
				Details: map[string]interface{}{"channel": i, "value": r, "max": MaxSensorReading},
			})
		}
	}
	return errors
}

// validateEmpty flags payload bytes on packets that carry none
func validateEmpty(p *Packet) []ValidationError {
	for i, b := range p.payload {
		if b != 0 {
			return []ValidationError{{
				Type:    AnomalyTrailingBytes,
				Message: fmt.Sprintf("%s packet has non-zero payload at offset %d", p.msgType, i),
				Details: map[string]interface{}{"offset": i, "value": b},
			}}
		}
	}
	return nil
}
