// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tgu-sql inspects the marker configuration database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/go-lpc/tgu/markerdb"
	_ "github.com/go-sql-driver/mysql"
)

const (
	dbname = "tgusrv"
)

func main() {
	log.SetPrefix("tgu-sql: ")
	log.SetFlags(0)

	var (
		setup = flag.String("setup", "", "setup to inspect")
	)

	flag.Parse()

	db, err := markerdb.Open(dbname)
	if err != nil {
		log.Fatalf("could not open TGU db: %+v", err)
	}
	defer db.Close()

	err = doQuery(db, *setup)
	if err != nil {
		log.Fatalf("could not do query: %+v", err)
	}
}

func doQuery(db *markerdb.DB, setup string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if setup == "" {
		v, err := db.LastSetup(ctx)
		if err != nil {
			return fmt.Errorf("could not get last setup: %w", err)
		}
		setup = v
		log.Printf("setup: %q", setup)
	}

	addr, err := db.DeviceAddr(ctx, setup)
	if err != nil {
		return fmt.Errorf("could not get TGU address (setup=%q): %w", setup, err)
	}
	log.Printf("tgu: %q", addr)

	mks, err := db.Markers(ctx, setup)
	if err != nil {
		return fmt.Errorf("could not get markers (setup=%q): %w", setup, err)
	}
	log.Printf("markers: %d", len(mks))
	for i, mk := range mks {
		ns, _ := mk.Def.NS.Bits()
		sa, _ := mk.Def.SA.Bits()
		gpio, _ := mk.Def.GPIO.Bits()
		log.Printf("row[%d]: %-20q ns=0x%02x sa=0x%02x gpio=0x%02x width=%v order=%v",
			i, mk.Name, ns, sa, gpio, mk.Width, mk.Def.Order,
		)
	}

	return nil
}
