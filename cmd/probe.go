// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/hircpd/internal/transport"
	"github.com/Thermoquad/hircpd/pkg/hircp"
	"github.com/spf13/cobra"
)

var (
	probeAddr     string
	probeURL      string
	probeInsecure bool
	probeTimeout  int
	probeCount    int
	probeMode     string
	probeFingers  string
	probeInterval time.Duration
	probeVerbose  bool
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Exercise a running controller as a HIRCP client",
	Long: `Connect to a controller, perform the handshake, optionally switch mode,
send DATA packets and terminate the session.

Each DATA packet carries the finger positions given by --fingers. The
controller answers with a DATA-ACK holding the fingertip sensor readings, and
in CLOSED_LOOP mode the grasp decision.

Examples:
  hircpd probe
  hircpd probe --addr 192.168.1.20:5001 --count 10
  hircpd probe --url ws://localhost:8080/hircp --mode closed_loop --fingers 100,100,100,100,0

Exit codes:
  0 - All exchanges successful
  1 - One or more exchanges failed or timed out
  2 - Connection or handshake error`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().StringVarP(&probeAddr, "addr", "a", fmt.Sprintf("localhost:%d", transport.DefaultPort), "Controller TCP address")
	probeCmd.Flags().StringVarP(&probeURL, "url", "u", "", "Controller WebSocket URL (ws:// or wss://), overrides --addr")
	probeCmd.Flags().BoolVar(&probeInsecure, "insecure", false, "Skip TLS certificate verification for wss://")
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 5, "Timeout in seconds for each response")
	probeCmd.Flags().IntVar(&probeCount, "count", 3, "Number of DATA packets to send")
	probeCmd.Flags().StringVar(&probeMode, "mode", "", "Switch mode before sending data: normal or closed_loop")
	probeCmd.Flags().StringVar(&probeFingers, "fingers", "90,90,90,90,90", "Finger positions in degrees (thumb,index,middle,ring,pinky)")
	probeCmd.Flags().DurationVar(&probeInterval, "interval", 100*time.Millisecond, "Pause between DATA packets")
	probeCmd.Flags().BoolVarP(&probeVerbose, "verbose", "v", false, "Print every response in full")
}

// parseFingers parses a comma separated list of finger positions.
func parseFingers(s string) ([]byte, error) {
	parts := strings.Split(s, ",")
	if len(parts) != hircp.NumServos {
		return nil, fmt.Errorf("expected %d finger positions, got %d", hircp.NumServos, len(parts))
	}
	out := make([]byte, hircp.NumServos)
	for i, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid finger position %q: %v", part, err)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// parseMode maps a --mode value onto a mode byte.
func parseMode(s string) (hircp.Mode, error) {
	switch strings.ToLower(s) {
	case "normal":
		return hircp.ModeNormal, nil
	case "closed_loop", "closed-loop", "closedloop":
		return hircp.ModeClosedLoop, nil
	}
	return 0, fmt.Errorf("unknown mode %q (use normal or closed_loop)", s)
}

func runProbe(cmd *cobra.Command, args []string) error {
	fingers, err := parseFingers(probeFingers)
	if err != nil {
		return err
	}
	var mode hircp.Mode
	if probeMode != "" {
		if mode, err = parseMode(probeMode); err != nil {
			return err
		}
	}
	timeout := time.Duration(probeTimeout) * time.Second

	addr := probeAddr
	if probeURL != "" {
		addr = ""
	}
	conn, connInfo, err := OpenConnection(addr, probeURL, probeInsecure)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("HIRCP Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per response\n", probeTimeout)
	fmt.Printf("Count: %d data packets\n\n", probeCount)

	// Handshake
	fmt.Printf("Handshake: ")
	start := time.Now()
	if err := conn.Send(hircp.NewPacket(hircp.TypeAck, nil)); err != nil {
		fmt.Printf("SEND FAILED: %v\n", err)
		os.Exit(2)
	}
	resp, err := conn.Receive(timeout)
	if err != nil {
		fmt.Printf("FAILED: %v\n", err)
		os.Exit(2)
	}
	if resp.Type() != hircp.TypeAck {
		fmt.Printf("FAILED: unexpected %s\n", resp.Type())
		os.Exit(2)
	}
	fmt.Printf("ACK, rtt=%v\n", time.Since(start).Round(time.Microsecond))

	// Mode switch is not acknowledged
	if probeMode != "" {
		if err := conn.Send(hircp.NewModePacket(mode)); err != nil {
			fmt.Printf("Mode: SEND FAILED: %v\n", err)
			os.Exit(2)
		}
		fmt.Printf("Mode: %s\n", mode)
	}

	received := 0
	for i := 1; i <= probeCount; i++ {
		fmt.Printf("Data %d/%d: ", i, probeCount)

		start := time.Now()
		if err := conn.Send(hircp.NewPacket(hircp.TypeData, fingers)); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			continue
		}

		resp, err := conn.Receive(timeout)
		rtt := time.Since(start)
		switch {
		case err != nil:
			fmt.Printf("READ FAILED: %v\n", err)
		case resp.Type() == hircp.TypeDataAck:
			received++
			fmt.Printf("%s, rtt=%v\n", summarizeDataAck(resp), rtt.Round(time.Microsecond))
		default:
			fmt.Printf("unexpected %s\n", resp.Type())
		}
		if err == nil && probeVerbose {
			fmt.Print(hircp.FormatPacket(resp))
		}

		if i < probeCount {
			time.Sleep(probeInterval)
		}
	}

	// Terminate
	fmt.Printf("Terminate: ")
	if err := conn.Send(hircp.NewPacket(hircp.TypeTerminate, nil)); err != nil {
		fmt.Printf("SEND FAILED: %v\n", err)
	} else if resp, err := conn.Receive(timeout); err != nil {
		fmt.Printf("no ACK (%v)\n", err)
	} else {
		fmt.Printf("%s\n", resp.Type())
	}

	fmt.Printf("\n--- Probe statistics ---\n")
	fmt.Printf("%d data packets sent, %d responses received, %.0f%% loss\n",
		probeCount, received, lossPercent(probeCount, received))

	if received < probeCount {
		os.Exit(1)
	}
	return nil
}

// summarizeDataAck renders the sensor block and grasp byte on one line.
func summarizeDataAck(p *hircp.Packet) string {
	readings, err := hircp.DecodeSensorPayload(p.Payload())
	if err != nil {
		return fmt.Sprintf("DACK (%v)", err)
	}
	parts := make([]string, len(readings))
	for i, r := range readings {
		parts[i] = strconv.Itoa(int(r))
	}
	result := "DACK sensors=" + strings.Join(parts, ",")
	if g := p.PayloadByte(hircp.GraspStatusOffset); g != 0 {
		result += fmt.Sprintf(" grasp=0x%02X", g)
	}
	return result
}

func lossPercent(sent, received int) float64 {
	if sent == 0 {
		return 0
	}
	return float64(sent-received) * 100.0 / float64(sent)
}
