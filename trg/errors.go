// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trg

import "fmt"

// TransportError reports a failed connect, write or read exchange with
// the device.
type TransportError struct {
	Op  string // operation that failed: "dial", "write", "read", ...
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("trg: could not %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a malformed or mismatched acknowledgment.
type ProtocolError struct {
	Cmd   uint32 // command word the reply should acknowledge
	Reply string // raw textual reply
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("trg: invalid reply %q for command 0x%08x", e.Reply, e.Cmd)
}

// RangeError reports an instruction field or memory index out of bounds.
type RangeError struct {
	What     string
	Val      int64
	Min, Max int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("trg: %s out of range: %d not in [%d, %d]",
		e.What, e.Val, e.Min, e.Max,
	)
}
