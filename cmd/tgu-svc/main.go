// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tgu-svc starts a TDAQ server controlling a TGU trigger
// generator, so the trigger lines follow the run-control state machine
// of the experiment.
//
// Usage:
//
//	tgu-svc [TDAQ-OPTIONS] ADDR [PIN...]
//
// ADDR is the address:port of the TGU and PIN the names of the trigger
// lines pulsed on /start (ns0..ns7, sa0..sa7, gpio0..gpio7).
package main // import "github.com/go-lpc/tgu/cmd/tgu-svc"

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/tgu"
	"github.com/go-lpc/tgu/trg"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	log.SetPrefix("tgu-svc: ")
	log.SetFlags(0)

	cmd := flags.New()
	if len(cmd.Args) < 1 {
		log.Fatalf("missing TGU address")
	}
	addr := cmd.Args[0]

	var pins []trg.Pin
	for _, name := range cmd.Args[1:] {
		pin, err := parsePin(name)
		if err != nil {
			log.Fatalf("%+v", err)
		}
		pins = append(pins, pin)
	}

	out := io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   "/var/log/tgu/tgu-svc.log",
		MaxSize:    5, // megabytes
		MaxBackups: 3,
	})

	vers, _ := tgu.Version()
	log.Printf("version: %s", vers)
	log.Printf("tgu: %q, pins: %v", addr, pins)

	dev := trg.NewServer(cmd.Name, addr, pins)

	srv := tdaq.New(cmd, out)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)
	srv.CmdHandle("/marker", dev.OnMarker)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

func parsePin(name string) (trg.Pin, error) {
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
