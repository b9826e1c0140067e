// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/hircpd/internal/capture"
	"github.com/Thermoquad/hircpd/internal/config"
	"github.com/Thermoquad/hircpd/internal/controller"
	"github.com/Thermoquad/hircpd/internal/driver"
	"github.com/Thermoquad/hircpd/internal/logging"
	"github.com/Thermoquad/hircpd/internal/metrics"
	"github.com/Thermoquad/hircpd/internal/status"
	"github.com/Thermoquad/hircpd/internal/transport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HIRCP controller",
	Long: `Run the HIRCP controller.

The controller listens on one transport, accepts a single client at a time and
runs the handshake, dispatch and termination sequence for each. When a session
ends the controller returns to listening.

Transports:
  tcp     16-byte packets on a TCP stream (default :5001)
  ws      one binary WebSocket message per packet
  serial  16-byte packets on a serial line

Drivers:
  sim     simulated hand (default)
  bridge  servo bridge board on a serial port

Examples:
  hircpd serve
  hircpd serve --listen :6000 --error-replies
  hircpd serve --transport ws --listen :8080 --status :9090
  hircpd serve --driver bridge --bridge-port /dev/ttyUSB0 --tui`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("transport", config.TransportTCP, "Transport: tcp, ws or serial")
	serveCmd.Flags().StringP("listen", "l", "", "Listen address for tcp and ws transports")
	serveCmd.Flags().String("ws-path", transport.DefaultWSPath, "WebSocket endpoint path")
	serveCmd.Flags().String("serial-port", "", "Serial port for the serial transport")
	serveCmd.Flags().Int("serial-baud", 115200, "Serial transport baud rate")
	serveCmd.Flags().String("driver", config.DriverSim, "Hand driver: sim or bridge")
	serveCmd.Flags().String("bridge-port", "", "Serial port of the servo bridge")
	serveCmd.Flags().Int("bridge-baud", 115200, "Servo bridge baud rate")
	serveCmd.Flags().Duration("bridge-timeout", 100*time.Millisecond, "Servo bridge response timeout")
	serveCmd.Flags().Duration("recv-timeout", 60*time.Second, "Idle timeout per session (0 disables)")
	serveCmd.Flags().Bool("error-replies", false, "Answer rejected packets with ERROR instead of dropping them")
	serveCmd.Flags().String("status", "", "Address for the HTTP status server (/healthz, /status, /metrics)")
	serveCmd.Flags().String("capture", "", "Append every packet to this capture file")
	serveCmd.Flags().Bool("tui", false, "Show the live monitor (requires a terminal)")
}

// applyFlags overrides file values with flags given on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("transport") {
		cfg.Transport, _ = f.GetString("transport")
	}
	if f.Changed("listen") {
		cfg.Listen, _ = f.GetString("listen")
	}
	if f.Changed("ws-path") {
		cfg.WSPath, _ = f.GetString("ws-path")
	}
	if f.Changed("serial-port") {
		cfg.SerialPort, _ = f.GetString("serial-port")
	}
	if f.Changed("serial-baud") {
		cfg.SerialBaud, _ = f.GetInt("serial-baud")
	}
	if f.Changed("driver") {
		cfg.Driver, _ = f.GetString("driver")
	}
	if f.Changed("bridge-port") {
		cfg.BridgePort, _ = f.GetString("bridge-port")
	}
	if f.Changed("bridge-baud") {
		cfg.BridgeBaud, _ = f.GetInt("bridge-baud")
	}
	if f.Changed("bridge-timeout") {
		cfg.BridgeTimeout, _ = f.GetDuration("bridge-timeout")
	}
	if f.Changed("recv-timeout") {
		cfg.RecvTimeout, _ = f.GetDuration("recv-timeout")
	}
	if f.Changed("error-replies") {
		cfg.ErrorReplies, _ = f.GetBool("error-replies")
	}
	if f.Changed("status") {
		cfg.StatusAddr, _ = f.GetString("status")
	}
	if f.Changed("capture") {
		cfg.CaptureFile, _ = f.GetString("capture")
	}
	if f.Changed("tui") {
		cfg.TUI, _ = f.GetBool("tui")
	}
	if debug {
		cfg.Debug = true
	}
}

func openListener(cfg config.Config) (transport.Listener, error) {
	switch cfg.Transport {
	case config.TransportWebSocket:
		return transport.ListenWebSocket(cfg.Listen, cfg.WSPath)
	case config.TransportSerial:
		return transport.ListenSerial(cfg.SerialPort, cfg.SerialBaud), nil
	default:
		return transport.ListenTCP(cfg.Listen)
	}
}

func openHand(cfg config.Config) (driver.Hand, error) {
	if cfg.Driver == config.DriverBridge {
		b, err := driver.OpenBridge(cfg.BridgePort, cfg.BridgeBaud, cfg.BridgeTimeout)
		if err != nil {
			return nil, err
		}
		logging.Info("servo bridge on %s @ %d baud", cfg.BridgePort, cfg.BridgeBaud)
		return b, nil
	}
	logging.Info("using simulated hand")
	return driver.NewSimulated(), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Debug {
		logging.EnableDebug()
	}

	useTUI := cfg.TUI
	if useTUI && !term.IsTerminal(int(os.Stdout.Fd())) {
		logging.Warn("stdout is not a terminal, monitor disabled")
		useTUI = false
	}

	hand, err := openHand(cfg)
	if err != nil {
		return err
	}
	if c, ok := hand.(driver.Closer); ok {
		defer c.Close()
	}

	listener, err := openListener(cfg)
	if err != nil {
		return err
	}
	defer listener.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(metrics.WithRegistry(registry))

	var rec *capture.Writer
	if cfg.CaptureFile != "" {
		rec, err = capture.Create(cfg.CaptureFile)
		if err != nil {
			return err
		}
		defer rec.Close()
		logging.Info("capturing packets to %s", cfg.CaptureFile)
	}

	ctrl := controller.New(controller.Config{
		Listener:     listener,
		Hand:         hand,
		RecvTimeout:  cfg.RecvTimeout,
		ErrorReplies: cfg.ErrorReplies,
		Metrics:      collector,
		Capture:      rec,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.StatusAddr != "" {
		srv, err := status.Listen(cfg.StatusAddr, status.NewRouter(ctrl, registry))
		if err != nil {
			return err
		}
		logging.Info("status server on %s", srv.Addr())
		go func() {
			if err := srv.Serve(ctx); err != nil {
				logging.Error("status server: %v", err)
			}
		}()
	}

	if useTUI {
		err = runMonitor(ctx, stop, ctrl)
	} else {
		err = ctrl.Run(ctx)
	}

	fmt.Fprint(os.Stderr, "\n"+ctrl.Stats().String())

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runMonitor runs the controller behind the live monitor. Log output is
// diverted into the monitor's event log while it owns the terminal.
func runMonitor(ctx context.Context, stop context.CancelFunc, ctrl *controller.Controller) error {
	events := newEventLog(maxEvents)
	logging.SetOutput(events)
	defer logging.SetOutput(os.Stderr)

	done := make(chan error, 1)
	go func() {
		done <- ctrl.Run(ctx)
	}()

	p := tea.NewProgram(newMonitorModel(ctrl, events), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		stop()
		<-done
		return fmt.Errorf("monitor error: %w", err)
	}

	stop()
	return <-done
}
