// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"net"
	"sync"
	"testing"
	"time"
)

// fakeTGU impersonates a trigger generator on a loopback TCP port:
// one command frame per connection, CRC checked, textual ack written
// back, connection closed.
type fakeTGU struct {
	t    *testing.T
	l    net.Listener
	caps Capabilities

	// reply, when non-nil, overrides the acknowledgment sent back.
	reply func(cmd uint32) string

	mu   sync.Mutex
	cmds []fakeCmd
}

type fakeCmd struct {
	cmd     uint32
	payload []uint32
}

func newFakeTGU(t *testing.T, caps Capabilities) *fakeTGU {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not listen: %+v", err)
	}
	f := &fakeTGU{t: t, l: l, caps: caps}
	go f.serve()
	return f
}

func (f *fakeTGU) addr() string { return f.l.Addr().String() }

func (f *fakeTGU) close() { _ = f.l.Close() }

func (f *fakeTGU) sent() []fakeCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmds := make([]fakeCmd, len(f.cmds))
	copy(cmds, f.cmds)
	return cmds
}

func (f *fakeTGU) serve() {
	for {
		conn, err := f.l.Accept()
		if err != nil {
			return
		}
		f.handle(conn)
	}
}

func (f *fakeTGU) handle(conn net.Conn) {
	defer conn.Close()

	var hdr [4]byte
	_, err := io.ReadFull(conn, hdr[:])
	if err != nil {
		// availability probes dial and close without writing.
		return
	}
	cmd := binary.LittleEndian.Uint32(hdr[:])

	var n int // payload words
	switch {
	case cmd&0xff == cmdProgram:
		n = f.caps.MemoryLength()
	case cmd == cmdGPIOMask, cmd == cmdLevelMask:
		n = 1
	}

	body := make([]byte, 4*(n+1))
	_, err = io.ReadFull(conn, body)
	if err != nil {
		f.t.Errorf("could not read frame body of command 0x%08x: %+v", cmd, err)
		return
	}

	var (
		sum  = binary.LittleEndian.Uint32(body[4*n:])
		want = crc32.ChecksumIEEE(append(hdr[:], body[:4*n]...))
	)
	if sum != want {
		f.t.Errorf("invalid frame checksum for command 0x%08x: got=0x%08x, want=0x%08x",
			cmd, sum, want,
		)
		return
	}

	payload := make([]uint32, n)
	for i := range payload {
		payload[i] = binary.LittleEndian.Uint32(body[4*i:])
	}

	f.mu.Lock()
	f.cmds = append(f.cmds, fakeCmd{cmd: cmd, payload: payload})
	f.mu.Unlock()

	ack := f.ack(cmd)
	_, err = conn.Write([]byte(ack))
	if err != nil {
		f.t.Errorf("could not write ack %q: %+v", ack, err)
	}
}

func (f *fakeTGU) ack(cmd uint32) string {
	if f.reply != nil {
		return f.reply(cmd)
	}
	v := 0
	if cmd == cmdQueryCaps {
		v = int(EncodeCapabilities(f.caps))
	}
	return fmt.Sprintf("ACK%d.%d", cmd, v)
}

// failDial makes every device command fail at dial time.
func failDial(t *testing.T) {
	t.Helper()
	tcpDial = func(network, addr string, timeout time.Duration) (net.Conn, error) {
		return nil, errors.New("dial refused")
	}
	t.Cleanup(func() { tcpDial = net.DialTimeout })
}
