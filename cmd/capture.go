// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Thermoquad/hircpd/internal/capture"
	"github.com/Thermoquad/hircpd/pkg/hircp"
	"github.com/spf13/cobra"
)

var (
	captureSession   uint64
	captureAnomalies bool
	captureRaw       bool
)

var captureCmd = &cobra.Command{
	Use:   "capture <file>",
	Short: "Print a packet capture file",
	Long: `Print the packets recorded by 'hircpd serve --capture' in human-readable form.

Each record shows the time, session, direction and decoded packet. With
--anomalies only packets that fail validation or carry suspicious payloads
are printed, along with the reason.

Examples:
  hircpd capture hircpd.cap
  hircpd capture hircpd.cap --session 3 --raw
  hircpd capture hircpd.cap --anomalies`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().Uint64Var(&captureSession, "session", 0, "Only show this session (0 for all)")
	captureCmd.Flags().BoolVar(&captureAnomalies, "anomalies", false, "Only show packets with anomalies")
	captureCmd.Flags().BoolVar(&captureRaw, "raw", false, "Also print raw bytes")
}

func runCapture(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	r := capture.NewReader(f)
	stats := hircp.NewStatistics()
	total, shown := 0, 0

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", total+1, err)
		}
		total++
		if captureSession != 0 && rec.Session != captureSession {
			continue
		}

		p, decodeErr := hircp.Decode(rec.Raw)
		if rec.Direction == capture.In {
			if decodeErr != nil {
				stats.RecordUndecodable()
			} else {
				stats.RecordReceived(p)
			}
		} else if decodeErr == nil {
			stats.RecordSent(p.Type())
		}

		var issues []hircp.ValidationError
		if decodeErr == nil {
			issues = hircp.ValidatePacket(p)
		}
		if captureAnomalies && decodeErr == nil && len(issues) == 0 {
			continue
		}
		shown++

		arrow := "<-"
		if rec.Direction == capture.Out {
			arrow = "->"
		}
		fmt.Printf("[%s] #%d %s ", rec.Time.Format("15:04:05.000"), rec.Session, arrow)

		if decodeErr != nil {
			fmt.Printf("\033[1;31mDECODE ERROR:\033[0m %v\n", decodeErr)
			fmt.Printf("  Raw: % X\n\n", rec.Raw)
			continue
		}

		fmt.Print(hircp.FormatPacket(p))
		if captureRaw {
			fmt.Printf("  Raw: % X\n", rec.Raw)
		}
		printValidationErrors(issues)
		fmt.Println()
	}

	fmt.Printf("%d records, %d shown\n\n", total, shown)
	fmt.Print(stats.String())
	return nil
}

// printValidationErrors prints anomalies with the severity colouring used for
// live packet logs.
func printValidationErrors(issues []hircp.ValidationError) {
	for i, issue := range issues {
		switch issue.Type {
		case hircp.AnomalyInvalidType, hircp.AnomalyInvalidMode:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, issue.Message)
			fmt.Printf("    >>> REJECTED BY CONTROLLER <<<\n")
		case hircp.AnomalyPositionRange, hircp.AnomalySensorRange:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, issue.Message)
		default:
			fmt.Printf("  Issue %d: %s\n", i+1, issue.Message)
		}
	}
}
