// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/hircpd/pkg/hircp"
	"github.com/gorilla/websocket"
)

func testPacket(b byte) []byte {
	return hircp.Encode(hircp.NewPacket(hircp.TypeData, []byte{b, b + 1, b + 2, b + 3, b + 4}))
}

// ============================================================
// TCP Tests
// ============================================================

func TestTCP_ExchangePackets(t *testing.T) {
	ln, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP error: %v", err)
	}
	defer ln.Close()

	client, err := net.Dial("tcp", ln.Addr())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer client.Close()

	conn, err := ln.Accept(context.Background())
	if err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	defer conn.Close()

	// Split one packet across two writes, then send a second packet whole.
	first := testPacket(10)
	client.Write(first[:5])
	time.Sleep(10 * time.Millisecond)
	client.Write(first[5:])
	client.Write(testPacket(20))

	for _, want := range [][]byte{first, testPacket(20)} {
		got, err := conn.ReadPacket()
		if err != nil {
			t.Fatalf("ReadPacket error: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("got % X, want % X", got, want)
		}
	}

	reply := hircp.Encode(hircp.NewPacket(hircp.TypeAck, nil))
	if err := conn.WritePacket(reply); err != nil {
		t.Fatalf("WritePacket error: %v", err)
	}
	buf := make([]byte, hircp.MaxPacketSize)
	if _, err := io.ReadFull(client, buf); err != nil {
		t.Fatalf("client read error: %v", err)
	}
	if !bytes.Equal(buf, reply) {
		t.Errorf("client got % X", buf)
	}
}

func TestTCP_ReadTimeout(t *testing.T) {
	ln, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP error: %v", err)
	}
	defer ln.Close()

	client, err := net.Dial("tcp", ln.Addr())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer client.Close()

	conn, err := ln.Accept(context.Background())
	if err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	defer conn.Close()

	conn.SetReadTimeout(20 * time.Millisecond)
	if _, err := conn.ReadPacket(); !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestTCP_ShortPacketAtEOF(t *testing.T) {
	ln, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP error: %v", err)
	}
	defer ln.Close()

	client, err := net.Dial("tcp", ln.Addr())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	conn, err := ln.Accept(context.Background())
	if err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	defer conn.Close()

	client.Write([]byte{0x01, 0x02, 0x03})
	client.Close()

	if _, err := conn.ReadPacket(); err == nil {
		t.Error("short packet at EOF should fail")
	}
}

func TestTCP_AcceptCancel(t *testing.T) {
	ln, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP error: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := ln.Accept(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

// ============================================================
// WebSocket Tests
// ============================================================

func TestWebSocket_ExchangePackets(t *testing.T) {
	ln, err := ListenWebSocket("127.0.0.1:0", "")
	if err != nil {
		t.Fatalf("ListenWebSocket error: %v", err)
	}
	defer ln.Close()

	accepted := make(chan Conn, 1)
	go func() {
		c, err := ln.Accept(context.Background())
		if err != nil {
			t.Errorf("Accept error: %v", err)
		}
		accepted <- c
	}()

	var client *websocket.Conn
	deadline := time.Now().Add(2 * time.Second)
	for {
		client, _, err = websocket.DefaultDialer.Dial("ws://"+ln.Addr()+DefaultWSPath, nil)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer client.Close()

	conn := <-accepted
	if conn == nil {
		t.Fatal("no connection accepted")
	}
	defer conn.Close()

	client.WriteMessage(websocket.TextMessage, []byte("hello"))
	client.WriteMessage(websocket.BinaryMessage, testPacket(7))

	got, err := conn.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket error: %v", err)
	}
	if !bytes.Equal(got, testPacket(7)) {
		t.Errorf("got % X, text frame should have been skipped", got)
	}

	ack := hircp.Encode(hircp.NewPacket(hircp.TypeAck, nil))
	if err := conn.WritePacket(ack); err != nil {
		t.Fatalf("WritePacket error: %v", err)
	}
	mt, data, err := client.ReadMessage()
	if err != nil || mt != websocket.BinaryMessage || !bytes.Equal(data, ack) {
		t.Errorf("client read type=%d data=% X err=%v", mt, data, err)
	}
}

func TestWebSocket_BusyWithoutAccept(t *testing.T) {
	ln, err := ListenWebSocket("127.0.0.1:0", "/ws")
	if err != nil {
		t.Fatalf("ListenWebSocket error: %v", err)
	}
	defer ln.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr()+"/ws", nil)
	if err == nil {
		t.Fatal("dial should fail while no Accept is pending")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("response = %v, want 503", resp)
	}
}

func TestWebSocket_AcceptAfterClose(t *testing.T) {
	ln, err := ListenWebSocket("127.0.0.1:0", "")
	if err != nil {
		t.Fatalf("ListenWebSocket error: %v", err)
	}
	ln.Close()
	if _, err := ln.Accept(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("error = %v, want ErrClosed", err)
	}
}

// ============================================================
// Serial Tests
// ============================================================

// fakeSerial returns scripted chunks; an empty chunk models a port timeout.
type fakeSerial struct {
	mu      sync.Mutex
	chunks  [][]byte
	written bytes.Buffer
	closed  bool
}

func (f *fakeSerial) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.chunks) == 0 {
		return 0, nil
	}
	c := f.chunks[0]
	n := copy(p, c)
	if n < len(c) {
		f.chunks[0] = c[n:]
	} else {
		f.chunks = f.chunks[1:]
	}
	return n, nil
}

func (f *fakeSerial) Write(p []byte) (int, error) { return f.written.Write(p) }
func (f *fakeSerial) Close() error                { f.closed = true; return nil }
func (f *fakeSerial) SetReadTimeout(time.Duration) error {
	return nil
}

func TestSerial_Reassembly(t *testing.T) {
	pkt := testPacket(1)
	port := &fakeSerial{chunks: [][]byte{pkt[:3], pkt[3:9], pkt[9:]}}
	ln := NewSerialListener("fake0", func() (SerialPort, error) { return port, nil })

	conn, err := ln.Accept(context.Background())
	if err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	conn.SetReadTimeout(time.Second)

	got, err := conn.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket error: %v", err)
	}
	if !bytes.Equal(got, pkt) {
		t.Errorf("got % X, want % X", got, pkt)
	}

	conn.WritePacket([]byte{0xAA})
	if !bytes.Equal(port.written.Bytes(), []byte{0xAA}) {
		t.Error("write not forwarded")
	}
	conn.Close()
	if !port.closed {
		t.Error("Close did not release the port")
	}
}

func TestSerial_Timeout(t *testing.T) {
	port := &fakeSerial{chunks: [][]byte{{0x01, 0x02}}}
	ln := NewSerialListener("fake0", func() (SerialPort, error) { return port, nil })
	conn, _ := ln.Accept(context.Background())
	conn.SetReadTimeout(50 * time.Millisecond)

	if _, err := conn.ReadPacket(); !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestSerial_AcceptAfterClose(t *testing.T) {
	ln := NewSerialListener("fake0", func() (SerialPort, error) { return &fakeSerial{}, nil })
	ln.Close()
	if _, err := ln.Accept(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("error = %v, want ErrClosed", err)
	}
}

var (
	_ Listener = (*TCPListener)(nil)
	_ Listener = (*WebSocketListener)(nil)
	_ Listener = (*SerialListener)(nil)
	_ Conn     = (*StreamConn)(nil)
	_ Conn     = (*WSConn)(nil)
	_ Conn     = (*SerialConn)(nil)
)
