// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package markerdb holds types to describe the marker-configuration
// database for recordings timestamped with a TGU trigger generator.
//
// The database keeps, per experiment setup, the control-port address of
// the TGU and the named marker definitions (class masks, bit order and
// pulse width) the stimulus software refers to during a recording.
package markerdb // import "github.com/go-lpc/tgu/markerdb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-lpc/tgu/trg"
	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// Marker is one named marker definition of a setup.
type Marker struct {
	Name  string
	Def   trg.Marker
	Width time.Duration // active width of the marker pulse
}

// DB exposes convenience methods to easily retrieve setup and marker
// configuration data from the TGU database.
type DB struct {
	db   *sql.DB
	name string // name of the TGU database
}

// Open opens a connection to the TGU database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("markerdb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("markerdb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("markerdb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// LastSetup returns the name of the most recently recorded setup.
func (db *DB) LastSetup(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	setup := ""
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT name FROM setups ORDER BY datetime DESC LIMIT 1",
	)
	if err != nil {
		return setup, fmt.Errorf("markerdb: could not query setup: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&setup)
		if err != nil {
			return setup, fmt.Errorf("markerdb: could not get setup value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return setup, fmt.Errorf("markerdb: could not scan db for setup: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return setup, fmt.Errorf("markerdb: context error while retrieving setup: %w", err)
	}

	return setup, nil
}

// DeviceAddr returns the TGU control-port address of the given setup.
func (db *DB) DeviceAddr(ctx context.Context, setup string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	addr := ""
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT tgu_addr FROM setups WHERE name=?",
		setup,
	)
	if err != nil {
		return addr, fmt.Errorf("markerdb: could not query TGU address: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&addr)
		if err != nil {
			return addr, fmt.Errorf("markerdb: could not get TGU address value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return addr, fmt.Errorf("markerdb: could not scan db for TGU address: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return addr, fmt.Errorf("markerdb: context error while retrieving TGU address: %w", err)
	}

	return addr, nil
}

// Markers returns the marker definitions of the given setup, in
// declaration order. Absent class masks are stored as NULL.
func (db *DB) Markers(ctx context.Context, setup string) ([]Marker, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var mks []Marker
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT markers.name, markers.ns, markers.sa, markers.gpio,
       markers.width_us, markers.msb_first
FROM markers
JOIN setups ON setups.identifier=markers.setup
WHERE setups.name=?
ORDER BY markers.identifier
`,
		setup,
	)
	if err != nil {
		return mks, fmt.Errorf("markerdb: could not run markers query: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var (
			name         string
			ns, sa, gpio sql.NullInt64
			width        int64
			msb          bool
		)
		err = rows.Scan(&name, &ns, &sa, &gpio, &width, &msb)
		if err != nil {
			return mks, fmt.Errorf("markerdb: could not scan row %d for markers: %w", i, err)
		}
		i++

		m := Marker{
			Name:  name,
			Width: time.Duration(width) * time.Microsecond,
		}
		if msb {
			m.Def.Order = trg.MSBFirst
		}
		if ns.Valid {
			m.Def.NS = trg.MaskOf(uint8(ns.Int64))
		}
		if sa.Valid {
			m.Def.SA = trg.MaskOf(uint8(sa.Int64))
		}
		if gpio.Valid {
			m.Def.GPIO = trg.MaskOf(uint8(gpio.Int64))
		}
		mks = append(mks, m)
	}

	if err := rows.Err(); err != nil {
		return mks, fmt.Errorf("markerdb: could not scan db for markers: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return mks, fmt.Errorf("markerdb: context error while retrieving markers: %w", err)
	}

	return mks, nil
}
