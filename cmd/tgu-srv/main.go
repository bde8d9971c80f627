// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tgu-srv bridges a TGU trigger generator to HTTP, so stimulus
// presentation software can send markers with plain web requests.
//
// Usage:
//
//	tgu-srv -addr 10.0.0.42:4000 -http :8080
package main // import "github.com/go-lpc/tgu/cmd/tgu-srv"

import (
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-lpc/tgu"
	"github.com/go-lpc/tgu/server"
	"github.com/go-lpc/tgu/trg"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	var (
		addr    = flag.String("addr", "10.0.0.42:4000", "TGU address:port to dial")
		haddr  = flag.String("http", ":8080", "[ip]:port to serve HTTP on")
		timeout = flag.Duration("timeout", 5*time.Second, "timeout for TGU commands")
		width   = flag.Duration("width", 2*time.Millisecond, "marker pulse width")
		logfile = flag.String("log", "", "path to rotating access log file")
	)

	flag.Parse()

	log.SetPrefix("tgu-srv: ")
	log.SetFlags(0)

	var access io.Writer = os.Stdout
	if *logfile != "" {
		access = &lumberjack.Logger{
			Filename:   *logfile,
			MaxSize:    5, // megabytes
			MaxBackups: 3,
		}
	}

	vers, _ := tgu.Version()
	log.Printf("version: %s", vers)

	dev := trg.New(*addr, log.Default(),
		trg.WithTimeout(*timeout),
		trg.WithPulseWidth(*width),
	)
	err := dev.Connect()
	if err != nil {
		log.Fatalf("could not connect to TGU %q: %+v", *addr, err)
	}

	srv := server.New(dev, log.Default(), access)

	log.Printf("serving TGU %q on %q...", *addr, *haddr)
	err = http.ListenAndServe(*haddr, srv.Handler())
	if err != nil {
		log.Fatalf("could not serve HTTP: %+v", err)
	}
}
