// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dispatch turns a DATA payload into actuator calls and a DACK
// payload according to the session's operating mode.
package dispatch

import (
	"fmt"

	"github.com/Thermoquad/hircpd/internal/driver"
	"github.com/Thermoquad/hircpd/internal/grasp"
	"github.com/Thermoquad/hircpd/pkg/hircp"
)

// Result is the outcome of dispatching one DATA packet.
type Result struct {
	Mode hircp.Mode

	// Targets holds the commanded positions in Normal mode.
	Targets [hircp.NumServos]uint8
	// Sensors holds the post-actuation readings.
	Sensors [hircp.NumSensors]uint16

	// DegreesSum and Grasp are set in ClosedLoop mode.
	DegreesSum uint16
	Grasp      grasp.Command

	// Response is the DACK payload.
	Response []byte

	// DriverErrors collects every failed driver call. Dispatch never stops on
	// them.
	DriverErrors []error
}

// Dispatch runs one DATA payload through the path selected by mode.
// An unsupported mode is an error and no driver call is made.
func Dispatch(mode hircp.Mode, payload []byte, hand driver.Hand) (*Result, error) {
	switch mode {
	case hircp.ModeNormal:
		return dispatchNormal(payload, hand), nil
	case hircp.ModeClosedLoop:
		return dispatchClosedLoop(payload, hand), nil
	default:
		return nil, fmt.Errorf("dispatch: unsupported mode 0x%02X", byte(mode))
	}
}

// dispatchNormal forwards each payload byte to its finger in channel order,
// then reads back every fingertip.
func dispatchNormal(payload []byte, hand driver.Hand) *Result {
	r := &Result{Mode: hircp.ModeNormal}

	for i, ch := range driver.Channels() {
		if i < len(payload) {
			r.Targets[i] = payload[i]
		}
		if err := hand.SetFingerPosition(ch, r.Targets[i]); err != nil {
			r.DriverErrors = append(r.DriverErrors, err)
		}
	}

	r.readSensors(hand)
	r.Response = hircp.EncodeSensorPayload(r.Sensors)
	return r
}

// dispatchClosedLoop sums the first grasp.SummedFingers payload bytes,
// applies the grasp decision, then reads back every fingertip. The grasp byte follows the
// sensor block in the response.
func dispatchClosedLoop(payload []byte, hand driver.Hand) *Result {
	r := &Result{Mode: hircp.ModeClosedLoop}
	r.DegreesSum = grasp.DegreesSum(payload)
	r.Grasp = grasp.Decide(r.DegreesSum)

	if err := hand.SetGraspCommand(r.Grasp); err != nil {
		r.DriverErrors = append(r.DriverErrors, err)
	}

	r.readSensors(hand)
	resp := make([]byte, hircp.GraspStatusOffset+1)
	copy(resp, hircp.EncodeSensorPayload(r.Sensors))
	resp[hircp.GraspStatusOffset] = byte(r.Grasp)
	r.Response = resp
	return r
}

// readSensors fills r.Sensors. A failed read leaves its slot at zero.
func (r *Result) readSensors(hand driver.Sensor) {
	for i, ch := range driver.Channels() {
		v, err := hand.ReadFingertipSensor(ch)
		if err != nil {
			r.DriverErrors = append(r.DriverErrors, err)
			continue
		}
		r.Sensors[i] = v
	}
}
