// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trg

// Capabilities describes the pin and memory geometry of a TGU, as
// reported by the capability query. A Capabilities value is decoded
// once per connection and immutable thereafter.
type Capabilities struct {
	NSPins   int // NeuroScan output pins
	SAPins   int // amplifier output pins
	SyncOut  int // synchronization outputs
	SyncIn   int // synchronization inputs
	GPIOPins int // general purpose output pins
	MemExp   int // program memory length exponent
}

// DecodeCapabilities unpacks the 32-bit capability word returned by the
// device. Each field occupies a fixed, non-overlapping bit range; the
// masks guarantee no overflow into adjacent fields.
func DecodeCapabilities(w uint32) Capabilities {
	return Capabilities{
		NSPins:   int(w >> 0 & 0x1f),
		SAPins:   int(w >> 5 & 0x1f),
		SyncOut:  int(w >> 10 & 0x7),
		SyncIn:   int(w >> 13 & 0x7),
		GPIOPins: int(w >> 16 & 0x1f),
		MemExp:   int(w >> 26 & 0x3f),
	}
}

// EncodeCapabilities packs caps back into a capability word. Fields are
// truncated to their wire widths. It is the inverse of
// DecodeCapabilities over the defined bit ranges and is mostly useful
// for device emulators.
func EncodeCapabilities(caps Capabilities) uint32 {
	return uint32(caps.NSPins)&0x1f<<0 |
		uint32(caps.SAPins)&0x1f<<5 |
		uint32(caps.SyncOut)&0x7<<10 |
		uint32(caps.SyncIn)&0x7<<13 |
		uint32(caps.GPIOPins)&0x1f<<16 |
		uint32(caps.MemExp)&0x3f<<26
}

// MemoryLength returns the number of addressable instruction slots per
// pin program, derived from the memory-length exponent with the scaling
// rule of the TGU datasheet.
func (caps Capabilities) MemoryLength() int {
	return 1 << uint(caps.MemExp)
}
