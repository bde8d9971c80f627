// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package trg implements the wire protocol and the instruction memory
// of the TGU trigger generator, a pulse box used to timestamp events
// in EEG recordings.
//
// A TGU exposes four classes of digital output lines: two EEG-amplifier
// interfaces (NeuroScan and amplifier, 8 pins each), a general purpose
// I/O bank (8 pins) and an internal synchronization output. Each pin
// runs its own program of timed pulse instructions, uploaded as a framed
// binary command over the device control port.
package trg // import "github.com/go-lpc/tgu/trg"

const (
	cmdProgram   uint32 = 0x01 // program pin memory; pin id in bits 24-31
	cmdStart     uint32 = 0x02 // start all programmed triggers
	cmdGPIOMask  uint32 = 0x03 // set GPIO output mask
	cmdQueryCaps uint32 = 0x04 // query capability word
	cmdStatus    uint32 = 0x05 // query status word
	cmdLevelMask uint32 = 0x06 // set level mask
	cmdGPIO      uint32 = 0x07 // query GPIO inputs
	cmdLevel     uint32 = 0x08 // query level inputs
	cmdStop      uint32 = 0x09 // stop all triggers
)

// Pin identifies one addressable trigger output line. The mapping from
// (class, index) to pin id is fixed by the device firmware: NeuroScan
// pins occupy ids 0-7, amplifier pins ids 8-15, GPIO pins ids 16-23 and
// the synchronization output id 24.
type Pin uint8

const (
	nClassPins = 8 // pins per class

	baseNS   Pin = 0
	baseSA   Pin = 8
	baseGPIO Pin = 16

	// SyncPin is the internal synchronization output.
	SyncPin Pin = 24
)

// NSPin returns the pin id of NeuroScan pin i.
func NSPin(i int) (Pin, error) { return pinOf("NS", baseNS, i) }

// SAPin returns the pin id of amplifier pin i.
func SAPin(i int) (Pin, error) { return pinOf("SA", baseSA, i) }

// GPIOPin returns the pin id of GPIO pin i.
func GPIOPin(i int) (Pin, error) { return pinOf("GPIO", baseGPIO, i) }

func pinOf(class string, base Pin, i int) (Pin, error) {
	if i < 0 || i >= nClassPins {
		return 0, &RangeError{
			What: class + " pin index",
			Val:  int64(i),
			Max:  nClassPins - 1,
		}
	}
	return base + Pin(i), nil
}

func pinRange(base Pin) []Pin {
	pins := make([]Pin, nClassPins)
	for i := range pins {
		pins[i] = base + Pin(i)
	}
	return pins
}

var (
	nsPins   = pinRange(baseNS)
	saPins   = pinRange(baseSA)
	gpioPins = pinRange(baseGPIO)
)
