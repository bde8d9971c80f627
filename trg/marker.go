// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trg

import "fmt"

// BitOrder selects how the bits of a marker mask map to pin indices.
type BitOrder int

const (
	LSBFirst BitOrder = iota // bit 0 drives pin 0
	MSBFirst                 // bit 0 drives pin 7
)

func (o BitOrder) String() string {
	switch o {
	case LSBFirst:
		return "lsb-first"
	case MSBFirst:
		return "msb-first"
	}
	return fmt.Sprintf("BitOrder(%d)", int(o))
}

// Mask selects up to eight pins of one class. The zero value selects
// nothing and leaves the class out of the marker.
type Mask struct {
	bits uint8
	ok   bool
}

// MaskOf returns a mask driving the pins whose bits are set in v.
func MaskOf(v uint8) Mask { return Mask{bits: v, ok: true} }

// Bits returns the raw mask bits and whether the mask is present.
func (m Mask) Bits() (uint8, bool) { return m.bits, m.ok }

func (m Mask) pins(class []Pin, order BitOrder) []Pin {
	if !m.ok {
		return nil
	}
	var pins []Pin
	for i := 0; i < nClassPins; i++ {
		if m.bits>>i&1 == 0 {
			continue
		}
		idx := i
		if order == MSBFirst {
			idx = nClassPins - 1 - i
		}
		pins = append(pins, class[idx])
	}
	return pins
}

// Marker is one logical recording event, expressed as simultaneous
// pulses across the selected pins of the NeuroScan, amplifier and GPIO
// classes.
type Marker struct {
	NS, SA, GPIO Mask
	Order        BitOrder
}

func (m Marker) empty() bool {
	return !m.NS.ok && !m.SA.ok && !m.GPIO.ok
}

// SendMarker emits marker m: it resets the NeuroScan, amplifier, GPIO
// and sync-output pins, programs the default pulse on every pin
// selected by the present masks and issues the global start command.
// A marker with no mask present is a no-op.
//
// An error aborts the remaining steps: the device may be left partially
// programmed and should be recovered with StopAndResetAll.
func (dev *Device) SendMarker(m Marker) error {
	if m.empty() {
		return nil
	}

	for _, class := range [][]Pin{nsPins, saPins, gpioPins} {
		err := dev.ResetPins(class)
		if err != nil {
			return err
		}
	}
	err := dev.ResetPin(SyncPin)
	if err != nil {
		return err
	}

	var pins []Pin
	pins = append(pins, m.NS.pins(nsPins, m.Order)...)
	pins = append(pins, m.SA.pins(saPins, m.Order)...)
	pins = append(pins, m.GPIO.pins(gpioPins, m.Order)...)
	for _, pin := range pins {
		err := dev.ProgramPulse(pin, dev.cfg.pulse)
		if err != nil {
			return err
		}
	}

	return dev.Start()
}
