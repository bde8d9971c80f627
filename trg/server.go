// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trg

import (
	"bytes"
	"fmt"

	"github.com/go-daq/tdaq"
)

// Server adapts a Device to the TDAQ run-control state machine, so a
// trigger generator can be driven alongside the other DAQ processes of
// an experiment.
type Server struct {
	name string
	dev  *Device
	pins []Pin // pins pulsed on /start
}

// NewServer returns a TDAQ server controlling the TGU on addr.
// The pins are the trigger lines pulsed when a run starts.
func NewServer(name, addr string, pins []Pin, opts ...Option) *Server {
	return &Server{
		name: name,
		dev:  New(addr, nil, opts...),
		pins: pins,
	}
}

// Device returns the underlying device session.
func (srv *Server) Device() *Device { return srv.dev }

func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	if !srv.dev.IsAvailable(srv.dev.cfg.timeout) {
		ctx.Msg.Errorf("TGU %q not reachable", srv.dev.Addr())
		return fmt.Errorf("trg: TGU %q not reachable", srv.dev.Addr())
	}
	return nil
}

func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	err := srv.dev.Connect()
	if err != nil {
		ctx.Msg.Errorf("could not connect to TGU %q: %+v", srv.dev.Addr(), err)
		return fmt.Errorf("trg: could not connect to TGU %q: %w", srv.dev.Addr(), err)
	}
	caps := srv.dev.Capabilities()
	ctx.Msg.Infof("%s: TGU %q: ns=%d sa=%d gpio=%d mem=%d",
		srv.name, srv.dev.Addr(), caps.NSPins, caps.SAPins, caps.GPIOPins, caps.MemoryLength(),
	)
	return nil
}

func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	err := srv.dev.StopAndResetAll()
	if err != nil {
		ctx.Msg.Errorf("could not reset TGU %q: %+v", srv.dev.Addr(), err)
		return fmt.Errorf("trg: could not reset TGU %q: %w", srv.dev.Addr(), err)
	}
	return nil
}

func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	err := srv.dev.StartTriggers(srv.pins...)
	if err != nil {
		ctx.Msg.Errorf("could not start triggers on TGU %q: %+v", srv.dev.Addr(), err)
		return fmt.Errorf("trg: could not start triggers on TGU %q: %w", srv.dev.Addr(), err)
	}
	return nil
}

func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command...")
	err := srv.dev.Stop()
	if err != nil {
		ctx.Msg.Errorf("could not stop TGU %q: %+v", srv.dev.Addr(), err)
		return fmt.Errorf("trg: could not stop TGU %q: %w", srv.dev.Addr(), err)
	}
	return nil
}

func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return nil
}

// Marker flag bits of the /marker command payload.
const (
	mrkHasNS uint32 = 1 << iota
	mrkHasSA
	mrkHasGPIO
	mrkMSBFirst
)

// OnMarker handles the /marker command: payload is four u32 words
// (ns mask, sa mask, gpio mask, flags).
func (srv *Server) OnMarker(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
	var (
		ns    = dec.ReadU32()
		sa    = dec.ReadU32()
		gpio  = dec.ReadU32()
		flags = dec.ReadU32()
	)

	var m Marker
	if flags&mrkHasNS != 0 {
		m.NS = MaskOf(uint8(ns))
	}
	if flags&mrkHasSA != 0 {
		m.SA = MaskOf(uint8(sa))
	}
	if flags&mrkHasGPIO != 0 {
		m.GPIO = MaskOf(uint8(gpio))
	}
	if flags&mrkMSBFirst != 0 {
		m.Order = MSBFirst
	}

	ctx.Msg.Infof("marker: ns=0x%02x sa=0x%02x gpio=0x%02x flags=0x%x",
		ns, sa, gpio, flags,
	)
	err := srv.dev.SendMarker(m)
	if err != nil {
		ctx.Msg.Errorf("could not send marker: %+v", err)
		return fmt.Errorf("trg: could not send marker: %w", err)
	}
	return nil
}
