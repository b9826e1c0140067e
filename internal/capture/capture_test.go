// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Thermoquad/hircpd/pkg/hircp"
)

func TestWriterReader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	in := hircp.Encode(hircp.NewPacket(hircp.TypeData, []byte{1, 2, 3, 4, 5}))
	out := hircp.Encode(hircp.NewPacket(hircp.TypeDataAck, []byte{0, 9}))
	if err := w.Write(7, In, in); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if err := w.Write(7, Out, out); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	r := NewReader(&buf)
	want := []struct {
		dir Direction
		raw []byte
	}{{In, in}, {Out, out}}

	for i, wnt := range want {
		rec, err := r.Next()
		if err != nil {
			t.Fatalf("record %d: Next error: %v", i, err)
		}
		if rec.Session != 7 || rec.Direction != wnt.dir || !bytes.Equal(rec.Raw, wnt.raw) {
			t.Errorf("record %d = %+v", i, rec)
		}
		if rec.Time.IsZero() {
			t.Errorf("record %d has no timestamp", i)
		}
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("final Next error = %v, want io.EOF", err)
	}
}

func TestReader_Corrupt(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xFF, 0x00, 0x13}))
	if _, err := r.Next(); err == nil || err == io.EOF {
		t.Errorf("error = %v, want decode error", err)
	}
}

func TestCreate_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cbor")

	for i := 0; i < 2; i++ {
		w, err := Create(path)
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		w.Write(uint64(i), In, []byte{byte(i)})
		w.Close()
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer f.Close()

	r := NewReader(f)
	for i := 0; i < 2; i++ {
		rec, err := r.Next()
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if rec.Session != uint64(i) {
			t.Errorf("record %d session = %d", i, rec.Session)
		}
	}
}

func TestWriter_NilSafe(t *testing.T) {
	var w *Writer
	if err := w.Write(1, In, []byte{1}); err != nil {
		t.Errorf("nil writer Write error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("nil writer Close error: %v", err)
	}
}
