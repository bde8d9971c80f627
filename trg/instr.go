// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trg

import "time"

// A pin program is an ordered sequence of 32-bit instruction words.
// Bits [0:30) hold a duration in microseconds, bits [30:32) the opcode.
// The all-zero and all-one words are reserved as sentinels recognized by
// the firmware: end-of-program and not-admissible. The four encodings
// are mutually exclusive bit patterns.
const (
	instrEnd           uint32 = 0x00000000
	instrNotAdmissible uint32 = 0xffffffff

	opActive   uint32 = 0x1 << 30
	opInactive uint32 = 0x2 << 30

	// MaxPulse is the longest representable pulse duration.
	MaxPulse = (1<<30 - 1) * time.Microsecond
)

// End returns the instruction word that stops the execution of a pin
// program. It must be the last meaningful slot of any valid program.
func End() uint32 { return instrEnd }

// NotAdmissible returns the instruction word marking an unused program
// slot. Every slot after End is padded with it so stale instructions
// from a previous program can never execute.
func NotAdmissible() uint32 { return instrNotAdmissible }

// Active encodes "drive the pin high for d", with d quantized to
// microseconds. Durations outside [0, MaxPulse] are refused.
func Active(d time.Duration) (uint32, error) { return instrOf(opActive, d) }

// Inactive encodes "drive the pin low for d", with d quantized to
// microseconds. Durations outside [0, MaxPulse] are refused.
func Inactive(d time.Duration) (uint32, error) { return instrOf(opInactive, d) }

func instrOf(op uint32, d time.Duration) (uint32, error) {
	us := d.Microseconds()
	if us < 0 || us > MaxPulse.Microseconds() {
		return 0, &RangeError{
			What: "pulse duration (µs)",
			Val:  us,
			Max:  MaxPulse.Microseconds(),
		}
	}
	return op | uint32(us), nil
}
