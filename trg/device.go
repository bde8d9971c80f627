// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trg

import (
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"time"
)

// settleWidth is the fixed low period inserted after the active pulse
// of a default marker program, before the program ends.
const settleWidth = 3 * time.Microsecond

var tcpDial = net.DialTimeout

type config struct {
	timeout time.Duration // per-command dial and I/O deadline
	pulse   time.Duration // active width of the default marker pulse
}

// Option configures a Device.
type Option func(*config)

// WithTimeout sets the dial and I/O deadline applied to each command
// exchange.
func WithTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.timeout = d
	}
}

// WithPulseWidth sets the active width of the default pulse programmed
// by StartTriggers and SendMarker.
func WithPulseWidth(d time.Duration) Option {
	return func(cfg *config) {
		cfg.pulse = d
	}
}

// Device drives one TGU trigger generator over its TCP control port.
//
// The protocol carries no request id beyond the echoed command word, so
// a Device never holds a persistent connection nor pipelines commands:
// every command is its own connect/send/receive/close cycle, bounded by
// the configured timeout. A Device is driven by a single caller at a
// time; concurrent callers must serialize access externally.
type Device struct {
	addr string
	msg  *log.Logger
	cfg  config

	caps   Capabilities
	memlen int // instruction slots per pin program
}

// New returns a device session for the TGU listening on addr.
// The session is usable for availability probes right away; Connect
// must succeed before any pin can be programmed.
func New(addr string, msg *log.Logger, opts ...Option) *Device {
	if msg == nil {
		msg = log.New(os.Stdout, "trg: ", 0)
	}
	dev := &Device{
		addr: addr,
		msg:  msg,
	}
	dev.cfg.timeout = 5 * time.Second
	dev.cfg.pulse = 2 * time.Millisecond
	for _, opt := range opts {
		opt(&dev.cfg)
	}
	return dev
}

// Addr returns the control-port address of the device.
func (dev *Device) Addr() string { return dev.addr }

// Capabilities returns the device geometry decoded by the last
// successful Connect.
func (dev *Device) Capabilities() Capabilities { return dev.caps }

// Connect queries the device capabilities and primes the session with
// the decoded pin counts and program memory length. On failure the
// previous session state is left unchanged.
func (dev *Device) Connect() error {
	dev.msg.Printf("connecting to %q...", dev.addr)
	v, err := dev.SendCommand(cmdQueryCaps, nil)
	if err != nil {
		dev.msg.Printf("connecting to %q... [failed]", dev.addr)
		return fmt.Errorf("trg: could not query capabilities of %q: %w", dev.addr, err)
	}

	caps := DecodeCapabilities(uint32(v))
	dev.caps = caps
	dev.memlen = caps.MemoryLength()
	dev.msg.Printf("connecting to %q... [ok: ns=%d sa=%d gpio=%d mem=%d]",
		dev.addr, caps.NSPins, caps.SAPins, caps.GPIOPins, dev.memlen,
	)
	return nil
}

// IsAvailable reports whether the device answers on its control port
// within timeout. Any failure collapses to false.
func (dev *Device) IsAvailable(timeout time.Duration) bool {
	conn, err := tcpDial("tcp", dev.addr, timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// SendCommand performs one connect/write/read/close cycle for the given
// command word and payload, and returns the acknowledged value. Errors
// are propagated to the caller; there are no retries.
func (dev *Device) SendCommand(cmd uint32, payload []uint32) (int, error) {
	conn, err := tcpDial("tcp", dev.addr, dev.cfg.timeout)
	if err != nil {
		return 0, &TransportError{Op: "dial " + dev.addr, Err: err}
	}
	defer conn.Close()

	err = conn.SetDeadline(time.Now().Add(dev.cfg.timeout))
	if err != nil {
		return 0, &TransportError{Op: "arm deadline", Err: err}
	}

	frame := buildFrame(cmd, payload)
	n, err := conn.Write(frame)
	switch {
	case err != nil:
		return 0, &TransportError{Op: fmt.Sprintf("write command 0x%08x", cmd), Err: err}
	case n != len(frame):
		return 0, &TransportError{Op: fmt.Sprintf("write command 0x%08x", cmd), Err: io.ErrShortWrite}
	}

	buf := make([]byte, 64)
	n, err = conn.Read(buf)
	if err != nil {
		return 0, &TransportError{Op: fmt.Sprintf("read ack of command 0x%08x", cmd), Err: err}
	}

	return parseAck(strings.TrimSpace(string(buf[:n])), cmd)
}

func (dev *Device) memoryLength() (int, error) {
	if dev.memlen < 1 {
		return 0, fmt.Errorf("trg: device %q not connected (no capabilities)", dev.addr)
	}
	return dev.memlen, nil
}

func (dev *Device) sendProgram(prog *Program) error {
	cmd := cmdProgram | uint32(prog.Pin())<<24
	_, err := dev.SendCommand(cmd, prog.Slots())
	if err != nil {
		return fmt.Errorf("trg: could not program pin %d: %w", prog.Pin(), err)
	}
	return nil
}

// ResetPin silences pin: its whole program memory is rewritten with End
// in slot 0 and NotAdmissible everywhere else. A pin must be reset
// before it is reused for a new program: commands are connectionless,
// so no implicit reset happens between programs.
func (dev *Device) ResetPin(pin Pin) error {
	n, err := dev.memoryLength()
	if err != nil {
		return err
	}
	prog, err := NewProgram(pin, n)
	if err != nil {
		return err
	}
	_ = prog.Set(0, End()) // slot 0 always exists
	return dev.sendProgram(prog)
}

// ResetPins applies ResetPin to each pin, in order.
func (dev *Device) ResetPins(pins []Pin) error {
	for _, pin := range pins {
		err := dev.ResetPin(pin)
		if err != nil {
			return err
		}
	}
	return nil
}

// ProgramPulse uploads the standard one-shot marker program to pin:
// active for width, inactive for the 3µs settle time, then End.
func (dev *Device) ProgramPulse(pin Pin, width time.Duration) error {
	n, err := dev.memoryLength()
	if err != nil {
		return err
	}
	if n < 3 {
		return fmt.Errorf("trg: program memory of %q too small for a pulse (%d slots)",
			dev.addr, n,
		)
	}

	hi, err := Active(width)
	if err != nil {
		return err
	}
	lo, err := Inactive(settleWidth)
	if err != nil {
		return err
	}

	prog, err := NewProgram(pin, n)
	if err != nil {
		return err
	}
	_ = prog.Set(0, hi)
	_ = prog.Set(1, lo)
	_ = prog.Set(2, End())
	return dev.sendProgram(prog)
}

// Start issues the global start command: every programmed pin begins
// executing its program.
func (dev *Device) Start() error {
	_, err := dev.SendCommand(cmdStart, nil)
	if err != nil {
		return fmt.Errorf("trg: could not start triggers: %w", err)
	}
	return nil
}

// Stop issues the global stop command.
func (dev *Device) Stop() error {
	_, err := dev.SendCommand(cmdStop, nil)
	if err != nil {
		return fmt.Errorf("trg: could not stop triggers: %w", err)
	}
	return nil
}

// StartTriggers programs the default pulse on each requested pin and
// issues the global start command. All three addressable pin classes
// are reset first, whether targeted or not, so no stale program from a
// previous call can fire.
//
// An error aborts the remaining steps: the device may be left partially
// programmed and should be recovered with StopAndResetAll.
func (dev *Device) StartTriggers(pins ...Pin) error {
	for _, class := range [][]Pin{gpioPins, saPins, nsPins} {
		err := dev.ResetPins(class)
		if err != nil {
			return err
		}
	}
	for _, pin := range pins {
		err := dev.ProgramPulse(pin, dev.cfg.pulse)
		if err != nil {
			return err
		}
	}
	return dev.Start()
}

// StopAndResetAll stops the device and silences the sync-output,
// amplifier, GPIO and NeuroScan pins, returning the device to its
// quiescent state.
func (dev *Device) StopAndResetAll() error {
	err := dev.Stop()
	if err != nil {
		return err
	}
	err = dev.ResetPin(SyncPin)
	if err != nil {
		return err
	}
	for _, class := range [][]Pin{saPins, gpioPins, nsPins} {
		err = dev.ResetPins(class)
		if err != nil {
			return err
		}
	}
	return nil
}

// SetGPIOMask drives the GPIO output mask register.
func (dev *Device) SetGPIOMask(mask uint32) error {
	_, err := dev.SendCommand(cmdGPIOMask, []uint32{mask})
	if err != nil {
		return fmt.Errorf("trg: could not set GPIO mask 0x%x: %w", mask, err)
	}
	return nil
}

// SetLevelMask drives the level mask register.
func (dev *Device) SetLevelMask(mask uint32) error {
	_, err := dev.SendCommand(cmdLevelMask, []uint32{mask})
	if err != nil {
		return fmt.Errorf("trg: could not set level mask 0x%x: %w", mask, err)
	}
	return nil
}

// Status queries the device status word.
func (dev *Device) Status() (int, error) {
	v, err := dev.SendCommand(cmdStatus, nil)
	if err != nil {
		return 0, fmt.Errorf("trg: could not query status: %w", err)
	}
	return v, nil
}

// GPIO queries the GPIO input lines.
func (dev *Device) GPIO() (int, error) {
	v, err := dev.SendCommand(cmdGPIO, nil)
	if err != nil {
		return 0, fmt.Errorf("trg: could not query GPIO inputs: %w", err)
	}
	return v, nil
}

// Level queries the level input lines.
func (dev *Device) Level() (int, error) {
	v, err := dev.SendCommand(cmdLevel, nil)
	if err != nil {
		return 0, fmt.Errorf("trg: could not query level inputs: %w", err)
	}
	return v, nil
}
