// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// hircpd - HIRCP robotic hand controller
//
// Accepts one client at a time over TCP, WebSocket or serial and drives the
// hand's finger actuators and fingertip sensors from HIRCP packets.

package main

import (
	"os"

	"github.com/Thermoquad/hircpd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
