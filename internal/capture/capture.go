// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records raw packet traffic as a CBOR sequence.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction of a captured packet relative to the controller.
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// Record is one captured packet buffer.
type Record struct {
	Time      time.Time `cbor:"1,keyasint"`
	Session   uint64    `cbor:"2,keyasint"`
	Direction Direction `cbor:"3,keyasint"`
	Raw       []byte    `cbor:"4,keyasint"`
}

var encMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	encMode, err = opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture: cbor enc mode: %v", err))
	}
}

// Writer appends records to a stream. A nil *Writer discards everything.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	c   io.Closer
	enc *cbor.Encoder
}

// NewWriter writes records to w.
func NewWriter(w io.Writer) *Writer {
	cw := &Writer{w: w, enc: encMode.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok {
		cw.c = c
	}
	return cw
}

// Create opens path for appending and returns a writer on it.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	return NewWriter(f), nil
}

// Write records one packet buffer.
func (w *Writer) Write(session uint64, dir Direction, raw []byte) error {
	if w == nil {
		return nil
	}
	rec := Record{
		Time:      time.Now(),
		Session:   session,
		Direction: dir,
		Raw:       append([]byte(nil), raw...),
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(rec)
}

// Close closes the underlying file, if any.
func (w *Writer) Close() error {
	if w == nil || w.c == nil {
		return nil
	}
	return w.c.Close()
}

// Reader iterates over a capture stream.
type Reader struct {
	dec *cbor.Decoder
}

// NewReader reads records from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the stream.
func (r *Reader) Next() (*Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("capture: decode record: %w", err)
	}
	return &rec, nil
}
