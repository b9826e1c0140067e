// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging provides leveled, time-stamped logging backed by pterm.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pterm/pterm"
)

var mu sync.Mutex

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
	pterm.DefaultLogger.Writer = os.Stderr
}

func Debug(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	pterm.DefaultLogger.Debug(fmt.Sprintf(format, args...))
}

func Info(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func Warn(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	pterm.DefaultLogger.Warn(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	pterm.DefaultLogger.Error(fmt.Sprintf(format, args...))
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	mu.Lock()
	defer mu.Unlock()
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}

// SetOutput redirects log output. The monitor uses this to keep log lines
// off the terminal it draws on.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	pterm.DefaultLogger.Writer = w
}
