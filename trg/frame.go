// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trg

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
)

// buildFrame serializes a command into a wire frame: the little-endian
// command word, the little-endian payload words, then the little-endian
// CRC-32 (ISO-HDLC) of all preceding bytes. The device silently drops
// frames whose trailing checksum does not match.
func buildFrame(cmd uint32, payload []uint32) []byte {
	frame := make([]byte, 4*(len(payload)+2))
	binary.LittleEndian.PutUint32(frame, cmd)
	for i, v := range payload {
		binary.LittleEndian.PutUint32(frame[4*(i+1):], v)
	}
	crc := crc32.ChecksumIEEE(frame[:len(frame)-4])
	binary.LittleEndian.PutUint32(frame[len(frame)-4:], crc)
	return frame
}

// parseAck parses the textual acknowledgment "ACK<cmd>.<value>" and
// returns the decimal value. The command id of the reply must match the
// command that was sent.
func parseAck(reply string, cmd uint32) (int, error) {
	prefix := fmt.Sprintf("ACK%d.", cmd)
	if !strings.HasPrefix(reply, prefix) {
		return 0, &ProtocolError{Cmd: cmd, Reply: reply}
	}
	v, err := strconv.Atoi(reply[len(prefix):])
	if err != nil {
		return 0, &ProtocolError{Cmd: cmd, Reply: reply}
	}
	return v, nil
}
