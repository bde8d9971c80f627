// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tgu-shell provides an interactive shell to poke at a TGU
// trigger generator.
//
// Usage:
//
//	tgu-shell -addr 10.0.0.42:4000
//
// Available shell commands:
//
//	caps               query and display the device capabilities
//	status             query the device status word
//	start              start executing the programmed instructions
//	stop               stop and reset the whole device
//	marker NS SA GPIO  send a marker (masks in hex, "-" for absent)
//	pulse PIN [WIDTH]  program and fire a single pulse on a pin
//	quit               exit the shell
package main // import "github.com/go-lpc/tgu/cmd/tgu-shell"

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-lpc/tgu/trg"
	"github.com/peterh/liner"
)

func main() {
	var (
		addr    = flag.String("addr", "10.0.0.42:4000", "TGU address:port to dial")
		timeout = flag.Duration("timeout", 5*time.Second, "timeout for TGU commands")
	)

	log.SetPrefix("tgu-shell: ")
	log.SetFlags(0)

	flag.Parse()

	dev := trg.New(*addr, log.Default(), trg.WithTimeout(*timeout))
	err := dev.Connect()
	if err != nil {
		log.Fatalf("could not connect to TGU %q: %+v", *addr, err)
	}

	sh := newShell(dev)
	defer sh.Close()

	sh.run()
}

type shell struct {
	dev  *trg.Device
	term *liner.State
	hist string
}

var shellCmds = []string{
	"caps", "status", "start", "stop", "marker", "pulse", "quit",
}

func newShell(dev *trg.Device) *shell {
	sh := &shell{
		dev:  dev,
		term: liner.NewLiner(),
		hist: filepath.Join(os.TempDir(), ".tgu_history"),
	}
	sh.term.SetCtrlCAborts(true)
	sh.term.SetCompleter(func(line string) (c []string) {
		for _, cmd := range shellCmds {
			if strings.HasPrefix(cmd, strings.ToLower(line)) {
				c = append(c, cmd)
			}
		}
		return c
	})

	f, err := os.Open(sh.hist)
	if err == nil {
		_, _ = sh.term.ReadHistory(f)
		f.Close()
	}
	return sh
}

func (sh *shell) Close() error {
	f, err := os.Create(sh.hist)
	if err == nil {
		_, _ = sh.term.WriteHistory(f)
		f.Close()
	}
	return sh.term.Close()
}

func (sh *shell) run() {
	for {
		line, err := sh.term.Prompt("tgu> ")
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				fmt.Println()
				return
			}
			log.Printf("could not read line: %+v", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sh.term.AppendHistory(line)

		args := strings.Fields(line)
		if args[0] == "quit" {
			return
		}
		err = sh.dispatch(args[0], args[1:])
		if err != nil {
			log.Printf("%s: %+v", args[0], err)
		}
	}
}

func (sh *shell) dispatch(cmd string, args []string) error {
	switch cmd {
	case "caps":
		caps := sh.dev.Capabilities()
		fmt.Printf("ns-pins:   %d\n", caps.NSPins)
		fmt.Printf("sa-pins:   %d\n", caps.SAPins)
		fmt.Printf("gpio-pins: %d\n", caps.GPIOPins)
		fmt.Printf("sync-out:  %d\n", caps.SyncOut)
		fmt.Printf("sync-in:   %d\n", caps.SyncIn)
		fmt.Printf("memory:    %d slots\n", caps.MemoryLength())
		return nil

	case "status":
		sta, err := sh.dev.Status()
		if err != nil {
			return err
		}
		fmt.Printf("status: 0x%08x\n", sta)
		return nil

	case "start":
		return sh.dev.Start()

	case "stop":
		return sh.dev.StopAndResetAll()

	case "marker":
		if len(args) != 3 {
			return fmt.Errorf("marker needs exactly 3 masks (NS SA GPIO), got %d", len(args))
		}
		var mrk trg.Marker
		for i, dst := range []*trg.Mask{&mrk.NS, &mrk.SA, &mrk.GPIO} {
			if args[i] == "-" {
				continue
			}
			v, err := strconv.ParseUint(args[i], 0, 8)
			if err != nil {
				return fmt.Errorf("invalid mask %q: %w", args[i], err)
			}
			*dst = trg.MaskOf(uint8(v))
		}
		return sh.dev.SendMarker(mrk)

	case "pulse":
		if len(args) < 1 {
			return fmt.Errorf("pulse needs a pin name")
		}
		pin, err := parsePin(args[0])
		if err != nil {
			return err
		}
		width := 2 * time.Millisecond
		if len(args) > 1 {
			width, err = time.ParseDuration(args[1])
			if err != nil {
				return fmt.Errorf("invalid pulse width %q: %w", args[1], err)
			}
		}
		err = sh.dev.ProgramPulse(pin, width)
		if err != nil {
			return err
		}
		return sh.dev.Start()

	default:
		return fmt.Errorf("unknown command")
	}
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
