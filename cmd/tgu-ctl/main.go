// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tgu-ctl drives a TGU trigger generator from the command line.
//
// Usage:
//
//	tgu-ctl [OPTIONS] COMMAND [ARGS]
//
// with COMMAND one of:
//
//	caps               query and display the device capabilities
//	status             query the device status word
//	start              start executing the programmed instructions
//	stop               stop and reset the whole device
//	marker NS SA GPIO  send a marker (masks in hex, "-" for absent)
//	reset PIN...       reset the given pins (ns0..ns7, sa0..sa7, gpio0..gpio7, sync)
//
// Example:
//
//	$> tgu-ctl -addr 10.0.0.42:4000 marker 0x01 - 0x03
package main // import "github.com/go-lpc/tgu/cmd/tgu-ctl"

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-lpc/tgu/trg"
)

func main() {
	var (
		addr    = flag.String("addr", "10.0.0.42:4000", "TGU address:port to dial")
		timeout = flag.Duration("timeout", 5*time.Second, "timeout for TGU commands")
		width   = flag.Duration("width", 2*time.Millisecond, "marker pulse width")
		msb     = flag.Bool("msb", false, "map marker mask bit 0 to the highest pin")
	)

	log.SetPrefix("tgu-ctl: ")
	log.SetFlags(0)

	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		log.Fatalf("missing command")
	}

	dev := trg.New(*addr, log.Default(),
		trg.WithTimeout(*timeout),
		trg.WithPulseWidth(*width),
	)

	err := run(dev, *msb, flag.Args())
	if err != nil {
		log.Fatalf("could not run command %q: %+v", flag.Arg(0), err)
	}
}

func run(dev *trg.Device, msb bool, args []string) error {
	cmd, args := args[0], args[1:]
	switch cmd {
	case "caps":
		err := dev.Connect()
		if err != nil {
			return err
		}
		caps := dev.Capabilities()
		fmt.Printf("ns-pins:   %d\n", caps.NSPins)
		fmt.Printf("sa-pins:   %d\n", caps.SAPins)
		fmt.Printf("gpio-pins: %d\n", caps.GPIOPins)
		fmt.Printf("sync-out:  %d\n", caps.SyncOut)
		fmt.Printf("sync-in:   %d\n", caps.SyncIn)
		fmt.Printf("memory:    %d slots\n", caps.MemoryLength())
		return nil

	case "status":
		sta, err := dev.Status()
		if err != nil {
			return err
		}
		fmt.Printf("status: 0x%08x\n", sta)
		return nil

	case "start":
		err := dev.Connect()
		if err != nil {
			return err
		}
		return dev.StartTriggers()

	case "stop":
		err := dev.Connect()
		if err != nil {
			return err
		}
		return dev.StopAndResetAll()

	case "marker":
		if len(args) != 3 {
			return fmt.Errorf("marker needs exactly 3 masks (NS SA GPIO), got %d", len(args))
		}
		mrk, err := parseMarker(args, msb)
		if err != nil {
			return err
		}
		err = dev.Connect()
		if err != nil {
			return err
		}
		return dev.SendMarker(mrk)

	case "reset":
		if len(args) == 0 {
			return fmt.Errorf("reset needs at least one pin name")
		}
		var pins []trg.Pin
		for _, arg := range args {
			pin, err := parsePin(arg)
			if err != nil {
				return err
			}
			pins = append(pins, pin)
		}
		err := dev.Connect()
		if err != nil {
			return err
		}
		return dev.ResetPins(pins)

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func parseMarker(args []string, msb bool) (trg.Marker, error) {
	var mrk trg.Marker
	if msb {
		mrk.Order = trg.MSBFirst
	}
	for i, dst := range []*trg.Mask{&mrk.NS, &mrk.SA, &mrk.GPIO} {
		if args[i] == "-" {
			continue
		}
		v, err := strconv.ParseUint(args[i], 0, 8)
		if err != nil {
			return mrk, fmt.Errorf("invalid mask %q: %w", args[i], err)
		}
		*dst = trg.MaskOf(uint8(v))
	}
	return mrk, nil
}

func parsePin(name string) (trg.Pin, error) {
	if name == "sync" {
		return trg.SyncPin, nil
	}
	for _, class := range []struct {
		prefix string
		of     func(i int) (trg.Pin, error)
	}{
		{"ns", trg.NSPin},
		{"sa", trg.SAPin},
		{"gpio", trg.GPIOPin},
	} {
		if !strings.HasPrefix(name, class.prefix) {
			continue
		}
		i, err := strconv.Atoi(name[len(class.prefix):])
		if err != nil {
			return 0, fmt.Errorf("invalid pin name %q: %w", name, err)
		}
		return class.of(i)
	}
	return 0, fmt.Errorf("invalid pin name %q", name)
}
