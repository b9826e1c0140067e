// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hircp

import (
	"fmt"
	"sync"
	"time"
)

// Statistics tracks controller packet statistics and error rates.
// It is safe for concurrent use; the control loop writes while status
// surfaces read snapshots.
type Statistics struct {
	mu sync.Mutex
	s  StatisticsSnapshot
}

// StatisticsSnapshot is a point-in-time copy of the counters.
type StatisticsSnapshot struct {
	StartTime time.Time `json:"start_time"`

	// Sessions
	Sessions          uint64 `json:"sessions"`
	HandshakeFailures uint64 `json:"handshake_failures"`
	Terminations      uint64 `json:"terminations"`
	TransportErrors   uint64 `json:"transport_errors"`

	// Inbound
	TotalPackets     uint64 `json:"total_packets"`
	DataPackets      uint64 `json:"data_packets"`
	ModePackets      uint64 `json:"mode_packets"`
	TerminatePackets uint64 `json:"terminate_packets"`
	OtherPackets     uint64 `json:"other_packets"`
	InvalidPackets   uint64 `json:"invalid_packets"`
	InvalidModes     uint64 `json:"invalid_modes"`

	// Outbound
	DataAcksSent uint64 `json:"data_acks_sent"`
	AcksSent     uint64 `json:"acks_sent"`
	ErrorsSent   uint64 `json:"errors_sent"`

	// Control
	GraspOpen    uint64 `json:"grasp_open"`
	GraspClose   uint64 `json:"grasp_close"`
	DriverErrors uint64 `json:"driver_errors"`

	// Rates (calculated)
	PacketRate float64 `json:"packet_rate"` // packets/sec
	ErrorRate  float64 `json:"error_rate"`  // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{s: StatisticsSnapshot{StartTime: time.Now()}}
}

func (s *Statistics) update(fn func(*StatisticsSnapshot)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	fn(&s.s)
	s.mu.Unlock()
}

// RecordReceived counts one inbound packet. Invalid packets are counted once
// as invalid and not by type.
func (s *Statistics) RecordReceived(p *Packet) {
	s.update(func(st *StatisticsSnapshot) {
		st.TotalPackets++
		if !IsValid(p) {
			st.InvalidPackets++
			return
		}
		switch p.Type() {
		case TypeData:
			st.DataPackets++
		case TypeMode:
			st.ModePackets++
		case TypeTerminate:
			st.TerminatePackets++
		default:
			st.OtherPackets++
		}
	})
}

// RecordUndecodable counts a buffer that could not be decoded at all.
func (s *Statistics) RecordUndecodable() {
	s.update(func(st *StatisticsSnapshot) {
		st.TotalPackets++
		st.InvalidPackets++
	})
}

// RecordSent counts one outbound packet.
func (s *Statistics) RecordSent(t Type) {
	s.update(func(st *StatisticsSnapshot) {
		switch t {
		case TypeDataAck:
			st.DataAcksSent++
		case TypeAck:
			st.AcksSent++
		case TypeError:
			st.ErrorsSent++
		}
	})
}

// RecordInvalidMode counts a MODE packet carrying an unsupported value.
func (s *Statistics) RecordInvalidMode() {
	s.update(func(st *StatisticsSnapshot) { st.InvalidModes++ })
}

// RecordSession counts a session outcome.
func (s *Statistics) RecordSession(handshakeOK, terminated, transportErr bool) {
	s.update(func(st *StatisticsSnapshot) {
		st.Sessions++
		if !handshakeOK {
			st.HandshakeFailures++
		}
		if terminated {
			st.Terminations++
		}
		if transportErr {
			st.TransportErrors++
		}
	})
}

// RecordGrasp counts a closed-loop grasp decision.
func (s *Statistics) RecordGrasp(closed bool) {
	s.update(func(st *StatisticsSnapshot) {
		if closed {
			st.GraspClose++
		} else {
			st.GraspOpen++
		}
	})
}

// RecordDriverError counts a failed actuator or sensor call.
func (s *Statistics) RecordDriverError() {
	s.update(func(st *StatisticsSnapshot) { st.DriverErrors++ })
}

// Snapshot returns a copy of the counters with rates calculated.
func (s *Statistics) Snapshot() StatisticsSnapshot {
	if s == nil {
		return StatisticsSnapshot{}
	}
	s.mu.Lock()
	snap := s.s
	s.mu.Unlock()

	elapsed := time.Since(snap.StartTime).Seconds()
	if elapsed > 0 {
		snap.PacketRate = float64(snap.TotalPackets) / elapsed
		errorCount := snap.InvalidPackets + snap.InvalidModes + snap.TransportErrors + snap.DriverErrors
		snap.ErrorRate = float64(errorCount) / elapsed
	}
	return snap
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()

	var validPercent float64
	if snap.TotalPackets > 0 {
		validPercent = float64(snap.TotalPackets-snap.InvalidPackets) * 100.0 / float64(snap.TotalPackets)
	}

	elapsed := time.Since(snap.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Sessions:        %8d\n", snap.Sessions)
	if snap.HandshakeFailures > 0 {
		result += fmt.Sprintf("  Handshake Fail:  %5d\n", snap.HandshakeFailures)
	}
	if snap.TransportErrors > 0 {
		result += fmt.Sprintf("  Transport Err:   %5d\n", snap.TransportErrors)
	}
	result += fmt.Sprintf("Total Packets:   %8d\n", snap.TotalPackets)
	result += fmt.Sprintf("Valid Packets:   %8d (%.1f%%)\n", snap.TotalPackets-snap.InvalidPackets, validPercent)
	if snap.InvalidPackets > 0 {
		result += fmt.Sprintf("Invalid Packets: %8d\n", snap.InvalidPackets)
	}
	if snap.InvalidModes > 0 {
		result += fmt.Sprintf("Invalid Modes:   %8d\n", snap.InvalidModes)
	}
	result += fmt.Sprintf("DACKs Sent:      %8d\n", snap.DataAcksSent)
	if snap.GraspOpen+snap.GraspClose > 0 {
		result += fmt.Sprintf("Grasp:           %4d open %4d close\n", snap.GraspOpen, snap.GraspClose)
	}
	if snap.DriverErrors > 0 {
		result += fmt.Sprintf("Driver Errors:   %8d\n", snap.DriverErrors)
	}
	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", snap.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", snap.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.update(func(st *StatisticsSnapshot) {
		*st = StatisticsSnapshot{StartTime: time.Now()}
	})
}
