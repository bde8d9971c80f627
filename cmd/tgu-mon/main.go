// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tgu-mon monitors a set of TGU trigger generators and sends
// mail alerts when one of them stops answering.
//
// Usage:
//
//	tgu-mon [OPTIONS] ADDR [ADDR...]
//
// Mail credentials are taken from the MAIL_USERNAME, MAIL_PASSWORD,
// MAIL_SERVER, MAIL_PORT and MAIL_TGTS environment variables.
package main // import "github.com/go-lpc/tgu/cmd/tgu-mon"

import (
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-lpc/tgu/trg"
	"golang.org/x/sync/errgroup"
	mail "gopkg.in/gomail.v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	var (
		freq    = flag.Duration("freq", 30*time.Second, "probing interval")
		timeout = flag.Duration("timeout", 5*time.Second, "probe timeout")
		logfile = flag.String("log", "", "path to rotating log file")
	)

	flag.Parse()

	var out io.Writer = os.Stdout
	if *logfile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   *logfile,
			MaxSize:    5, // megabytes
			MaxBackups: 3,
		})
	}

	log.SetPrefix("tgu-mon: ")
	log.SetFlags(0)
	log.SetOutput(out)

	if flag.NArg() < 1 {
		flag.Usage()
		log.Fatalf("missing TGU address(es)")
	}

	run(flag.Args(), *freq, *timeout)
}

func run(addrs []string, freq, timeout time.Duration) {
	mon := &monitor{
		devs:    make([]*trg.Device, len(addrs)),
		timeout: timeout,
		freq:    freq,
		alerts:  make(map[string]int),
	}
	for i, addr := range addrs {
		mon.devs[i] = trg.New(addr, log.Default(), trg.WithTimeout(timeout))
	}

	log.Printf("monitoring %d TGU(s) every %v...", len(addrs), freq)
	tick := time.NewTicker(freq)
	defer tick.Stop()

	for range tick.C {
		err := mon.probe()
		if err != nil {
			log.Printf("probe cycle failed: %+v", err)
		}
	}
}

type monitor struct {
	devs    []*trg.Device
	timeout time.Duration
	freq    time.Duration
	alerts  map[string]int // consecutive failures per device
}

func (mon *monitor) probe() error {
	var grp errgroup.Group
	down := make([]bool, len(mon.devs))
	for i, dev := range mon.devs {
		i, dev := i, dev
		grp.Go(func() error {
			down[i] = !dev.IsAvailable(mon.timeout)
			return nil
		})
	}
	err := grp.Wait()
	if err != nil {
		return err
	}

	for i, dev := range mon.devs {
		addr := dev.Addr()
		if !down[i] {
			if mon.alerts[addr] > 0 {
				log.Printf("TGU %q is back", addr)
			}
			mon.alerts[addr] = 0
			continue
		}
		mon.alerts[addr]++
		log.Printf("TGU %q did not answer (%d consecutive failures)",
			addr, mon.alerts[addr],
		)

		const maxAlerts = 5
		if n := mon.alerts[addr]; n >= 2 && n < maxAlerts {
			mon.alertMail(addr, n)
		}
	}
	return nil
}

var (
	alertMailUsr  = os.Getenv("MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MAIL_PORT"))
	alertMailTgts = strings.Split(os.Getenv("MAIL_TGTS"), ",")
)

func (mon *monitor) alertMail(addr string, n int) {
	if alertMailUsr == "" || alertMailPwd == "" ||
		alertMailSrv == "" || alertMailPort == 0 ||
		len(alertMailTgts) == 0 {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[tgu-mon] TGU alert: %q", addr))
	msg.SetBody("text/plain", fmt.Sprintf("tgu: %q\nfailures: %d\nfreq: %v",
		addr, n, mon.freq,
	))

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
