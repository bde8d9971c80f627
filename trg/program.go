// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trg

// Program is the in-memory pulse program of one pin: a fixed-length
// instruction buffer, transmitted wholesale when the pin is programmed.
// All slots start out as NotAdmissible. A well-formed program writes End
// before any slot left as NotAdmissible; that invariant is upheld by the
// callers building programs, not by the type itself.
type Program struct {
	pin   Pin
	slots []uint32
}

// NewProgram returns a program of n instruction slots for pin, all
// initialized to NotAdmissible.
func NewProgram(pin Pin, n int) (*Program, error) {
	if n < 1 {
		return nil, &RangeError{
			What: "program length",
			Val:  int64(n),
			Min:  1,
			Max:  int64(int(^uint(0) >> 1)),
		}
	}
	prog := &Program{
		pin:   pin,
		slots: make([]uint32, n),
	}
	for i := range prog.slots {
		prog.slots[i] = instrNotAdmissible
	}
	return prog, nil
}

// Pin returns the pin this program is addressed to.
func (prog *Program) Pin() Pin { return prog.pin }

// Len returns the number of instruction slots.
func (prog *Program) Len() int { return len(prog.slots) }

// Set stores the instruction word v into slot i.
func (prog *Program) Set(i int, v uint32) error {
	if i < 0 || i >= len(prog.slots) {
		return &RangeError{
			What: "program slot",
			Val:  int64(i),
			Max:  int64(len(prog.slots) - 1),
		}
	}
	prog.slots[i] = v
	return nil
}

// Slots returns the ordered instruction words of the program.
// The returned slice is owned by the program and must not be modified.
func (prog *Program) Slots() []uint32 { return prog.slots }
