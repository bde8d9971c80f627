// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trg

import (
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"
)

var testCaps = Capabilities{
	NSPins:   8,
	SAPins:   8,
	SyncOut:  1,
	SyncIn:   1,
	GPIOPins: 8,
	MemExp:   4, // 16 instruction slots
}

func newTestDevice(t *testing.T, f *fakeTGU) *Device {
	t.Helper()
	return New(f.addr(), log.New(io.Discard, "", 0), WithTimeout(5*time.Second))
}

func TestConnect(t *testing.T) {
	f := newFakeTGU(t, testCaps)
	defer f.close()

	dev := newTestDevice(t, f)
	err := dev.Connect()
	if err != nil {
		t.Fatalf("could not connect: %+v", err)
	}

	if got, want := dev.Capabilities(), testCaps; got != want {
		t.Fatalf("invalid capabilities:\ngot= %#v\nwant=%#v", got, want)
	}
	if got, want := dev.memlen, 16; got != want {
		t.Fatalf("invalid memory length: got=%d, want=%d", got, want)
	}

	cmds := f.sent()
	if got, want := len(cmds), 1; got != want {
		t.Fatalf("invalid number of commands: got=%d, want=%d", got, want)
	}
	if got, want := cmds[0].cmd, cmdQueryCaps; got != want {
		t.Fatalf("invalid command word: got=0x%08x, want=0x%08x", got, want)
	}
}

func TestConnectFailure(t *testing.T) {
	failDial(t)

	dev := New("tgu.example.org:4000", log.New(io.Discard, "", 0))
	err := dev.Connect()
	if err == nil {
		t.Fatalf("expected an error")
	}

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("error is not a transport error: %+v", err)
	}

	// prior state unchanged: the session is still unusable.
	if got, want := dev.Capabilities(), (Capabilities{}); got != want {
		t.Fatalf("capabilities changed on failed connect: %#v", got)
	}
}

func TestResetPin(t *testing.T) {
	f := newFakeTGU(t, testCaps)
	defer f.close()

	dev := newTestDevice(t, f)
	err := dev.Connect()
	if err != nil {
		t.Fatalf("could not connect: %+v", err)
	}

	err = dev.ResetPin(SyncPin)
	if err != nil {
		t.Fatalf("could not reset pin: %+v", err)
	}

	cmds := f.sent()
	last := cmds[len(cmds)-1]
	if got, want := last.cmd, cmdProgram|uint32(SyncPin)<<24; got != want {
		t.Fatalf("invalid program command: got=0x%08x, want=0x%08x", got, want)
	}
	if got, want := len(last.payload), 16; got != want {
		t.Fatalf("invalid program length: got=%d, want=%d", got, want)
	}
	if got, want := last.payload[0], End(); got != want {
		t.Fatalf("invalid slot 0: got=0x%08x, want=0x%08x", got, want)
	}
	for i, v := range last.payload[1:] {
		if got, want := v, NotAdmissible(); got != want {
			t.Fatalf("invalid slot %d: got=0x%08x, want=0x%08x", i+1, got, want)
		}
	}
}

func TestResetPinNotConnected(t *testing.T) {
	f := newFakeTGU(t, testCaps)
	defer f.close()

	dev := newTestDevice(t, f)
	err := dev.ResetPin(SyncPin)
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func TestProgramPulse(t *testing.T) {
	f := newFakeTGU(t, testCaps)
	defer f.close()

	dev := newTestDevice(t, f)
	err := dev.Connect()
	if err != nil {
		t.Fatalf("could not connect: %+v", err)
	}

	pin, err := GPIOPin(3)
	if err != nil {
		t.Fatalf("could not get pin: %+v", err)
	}
	err = dev.ProgramPulse(pin, 20*time.Microsecond)
	if err != nil {
		t.Fatalf("could not program pulse: %+v", err)
	}

	cmds := f.sent()
	last := cmds[len(cmds)-1]
	if got, want := last.cmd, cmdProgram|uint32(pin)<<24; got != want {
		t.Fatalf("invalid program command: got=0x%08x, want=0x%08x", got, want)
	}

	hi, _ := Active(20 * time.Microsecond)
	lo, _ := Inactive(3 * time.Microsecond)
	want := []uint32{hi, lo, End()}
	for i, v := range want {
		if got := last.payload[i]; got != v {
			t.Fatalf("invalid slot %d: got=0x%08x, want=0x%08x", i, got, v)
		}
	}
	for i, v := range last.payload[3:] {
		if got, want := v, NotAdmissible(); got != want {
			t.Fatalf("invalid slot %d: got=0x%08x, want=0x%08x", i+3, got, want)
		}
	}
}

// pulsedPins extracts, in order, the pins whose program starts with an
// active instruction.
func pulsedPins(cmds []fakeCmd) []Pin {
	var pins []Pin
	for _, c := range cmds {
		if c.cmd&0xff != cmdProgram || len(c.payload) == 0 {
			continue
		}
		if c.payload[0]&(opActive|opInactive) != opActive {
			continue
		}
		pins = append(pins, Pin(c.cmd>>24))
	}
	return pins
}

func TestSendMarker(t *testing.T) {
	for _, tc := range []struct {
		name   string
		marker Marker
		want   []Pin
	}{
		{
			name:   "ns-lsb-first",
			marker: Marker{NS: MaskOf(0b00000001), Order: LSBFirst},
			want:   []Pin{0},
		},
		{
			name:   "ns-msb-first",
			marker: Marker{NS: MaskOf(0b00000001), Order: MSBFirst},
			want:   []Pin{7},
		},
		{
			name:   "sa-gpio",
			marker: Marker{SA: MaskOf(0b10000000), GPIO: MaskOf(0b00000011)},
			want:   []Pin{15, 16, 17},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeTGU(t, testCaps)
			defer f.close()

			dev := newTestDevice(t, f)
			err := dev.Connect()
			if err != nil {
				t.Fatalf("could not connect: %+v", err)
			}

			err = dev.SendMarker(tc.marker)
			if err != nil {
				t.Fatalf("could not send marker: %+v", err)
			}

			cmds := f.sent()

			// connect + 25 resets + pulses + start.
			if got, want := len(cmds), 1+25+len(tc.want)+1; got != want {
				t.Fatalf("invalid number of commands: got=%d, want=%d", got, want)
			}
			if got, want := cmds[len(cmds)-1].cmd, cmdStart; got != want {
				t.Fatalf("missing start command: got=0x%08x, want=0x%08x", got, want)
			}

			pins := pulsedPins(cmds)
			if len(pins) != len(tc.want) {
				t.Fatalf("invalid pulsed pins: got=%v, want=%v", pins, tc.want)
			}
			for i := range pins {
				if pins[i] != tc.want[i] {
					t.Fatalf("invalid pulsed pins: got=%v, want=%v", pins, tc.want)
				}
			}
		})
	}
}

func TestSendMarkerEmpty(t *testing.T) {
	f := newFakeTGU(t, testCaps)
	defer f.close()

	dev := newTestDevice(t, f)
	err := dev.SendMarker(Marker{})
	if err != nil {
		t.Fatalf("empty marker should be a no-op: %+v", err)
	}
	if got := f.sent(); len(got) != 0 {
		t.Fatalf("empty marker sent %d commands", len(got))
	}
}

func TestStartTriggers(t *testing.T) {
	f := newFakeTGU(t, testCaps)
	defer f.close()

	dev := newTestDevice(t, f)
	err := dev.Connect()
	if err != nil {
		t.Fatalf("could not connect: %+v", err)
	}

	pin, _ := NSPin(5)
	err = dev.StartTriggers(pin)
	if err != nil {
		t.Fatalf("could not start triggers: %+v", err)
	}

	cmds := f.sent()[1:] // skip capability query

	// full reset sweep: GPIO, then SA, then NS.
	sweep := append(append([]Pin{}, gpioPins...), append(saPins, nsPins...)...)
	for i, want := range sweep {
		c := cmds[i]
		if got := c.cmd & 0xff; got != cmdProgram {
			t.Fatalf("command %d is not a program: 0x%08x", i, c.cmd)
		}
		if got := Pin(c.cmd >> 24); got != want {
			t.Fatalf("invalid reset sweep order at %d: got=pin %d, want=pin %d", i, got, want)
		}
		if got, want := c.payload[0], End(); got != want {
			t.Fatalf("sweep command %d is not a reset: slot0=0x%08x", i, got)
		}
	}

	pins := pulsedPins(cmds)
	if len(pins) != 1 || pins[0] != pin {
		t.Fatalf("invalid pulsed pins: got=%v, want=[%d]", pins, pin)
	}
	if got, want := cmds[len(cmds)-1].cmd, cmdStart; got != want {
		t.Fatalf("missing start command: got=0x%08x, want=0x%08x", got, want)
	}
}

func TestStopAndResetAll(t *testing.T) {
	f := newFakeTGU(t, testCaps)
	defer f.close()

	dev := newTestDevice(t, f)
	err := dev.Connect()
	if err != nil {
		t.Fatalf("could not connect: %+v", err)
	}

	err = dev.StopAndResetAll()
	if err != nil {
		t.Fatalf("could not stop and reset: %+v", err)
	}

	cmds := f.sent()[1:]
	if got, want := cmds[0].cmd, cmdStop; got != want {
		t.Fatalf("invalid first command: got=0x%08x, want=0x%08x", got, want)
	}

	// sync-out first, then SA, GPIO, NS.
	sweep := append([]Pin{SyncPin}, append(append([]Pin{}, saPins...), append(gpioPins, nsPins...)...)...)
	if got, want := len(cmds), 1+len(sweep); got != want {
		t.Fatalf("invalid number of commands: got=%d, want=%d", got, want)
	}
	for i, want := range sweep {
		if got := Pin(cmds[i+1].cmd >> 24); got != want {
			t.Fatalf("invalid reset order at %d: got=pin %d, want=pin %d", i, got, want)
		}
	}
}

func TestAckMismatch(t *testing.T) {
	f := newFakeTGU(t, testCaps)
	defer f.close()
	f.reply = func(cmd uint32) string { return "ACK999.1" }

	dev := newTestDevice(t, f)
	_, err := dev.Status()
	if err == nil {
		t.Fatalf("expected an error")
	}
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("error is not a protocol error: %+v", err)
	}
}

func TestQueries(t *testing.T) {
	f := newFakeTGU(t, testCaps)
	defer f.close()
	f.reply = func(cmd uint32) string {
		if cmd == cmdStatus || cmd == cmdGPIO || cmd == cmdLevel {
			return fmt.Sprintf("ACK%d.%d", cmd, 42)
		}
		return fmt.Sprintf("ACK%d.0", cmd)
	}

	dev := newTestDevice(t, f)
	for _, tc := range []struct {
		name string
		f    func() (int, error)
	}{
		{"status", dev.Status},
		{"gpio", dev.GPIO},
		{"level", dev.Level},
	} {
		t.Run(tc.name, func(t *testing.T) {
			v, err := tc.f()
			if err != nil {
				t.Fatalf("could not query %s: %+v", tc.name, err)
			}
			if got, want := v, 42; got != want {
				t.Fatalf("invalid %s: got=%d, want=%d", tc.name, got, want)
			}
		})
	}

	err := dev.SetGPIOMask(0xab)
	if err != nil {
		t.Fatalf("could not set GPIO mask: %+v", err)
	}
	err = dev.SetLevelMask(0xcd)
	if err != nil {
		t.Fatalf("could not set level mask: %+v", err)
	}

	cmds := f.sent()
	var got []fakeCmd
	for _, c := range cmds {
		if c.cmd == cmdGPIOMask || c.cmd == cmdLevelMask {
			got = append(got, c)
		}
	}
	if len(got) != 2 || got[0].payload[0] != 0xab || got[1].payload[0] != 0xcd {
		t.Fatalf("invalid mask commands: %+v", got)
	}
}

func TestIsAvailable(t *testing.T) {
	f := newFakeTGU(t, testCaps)
	dev := newTestDevice(t, f)

	if !dev.IsAvailable(2 * time.Second) {
		t.Fatalf("device should be available")
	}

	f.close()
	if dev.IsAvailable(100 * time.Millisecond) {
		t.Fatalf("device should not be available")
	}
}
