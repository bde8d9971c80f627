// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package markerdb

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/go-lpc/tgu/internal/fakedb"
	"github.com/go-lpc/tgu/trg"
)

func init() {
	drvName = "fakedb"
}

func TestOpen(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open markerdb: %+v", err)
	}
	defer db.Close()
}

func TestLastSetup(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open markerdb: %+v", err)
	}
	defer db.Close()

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"name"},
		Values: [][]driver.Value{
			{"P300_2022_06"},
		},
	}, func(ctx context.Context) error {
		setup, err := db.LastSetup(ctx)
		if err != nil {
			t.Fatalf("could not retrieve last setup: %+v", err)
		}

		if got, want := setup, "P300_2022_06"; got != want {
			t.Fatalf("invalid last setup: got=%q, want=%q", got, want)
		}
		return nil
	})
}

func TestDeviceAddr(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open markerdb: %+v", err)
	}
	defer db.Close()

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"tgu_addr"},
		Values: [][]driver.Value{
			{"10.0.0.42:4000"},
		},
	}, func(ctx context.Context) error {
		addr, err := db.DeviceAddr(ctx, "P300_2022_06")
		if err != nil {
			t.Fatalf("could not retrieve TGU address: %+v", err)
		}

		if got, want := addr, "10.0.0.42:4000"; got != want {
			t.Fatalf("invalid TGU address: got=%q, want=%q", got, want)
		}
		return nil
	})
}

func TestMarkers(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open markerdb: %+v", err)
	}
	defer db.Close()

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"name", "ns", "sa", "gpio", "width_us", "msb_first"},
		Values: [][]driver.Value{
			{"stim-onset", int64(0x01), nil, nil, int64(2000), false},
			{"response", nil, int64(0x80), int64(0x03), int64(500), true},
		},
	}, func(ctx context.Context) error {
		mks, err := db.Markers(ctx, "P300_2022_06")
		if err != nil {
			t.Fatalf("could not retrieve markers: %+v", err)
		}

		if got, want := len(mks), 2; got != want {
			t.Fatalf("invalid number of markers: got=%d, want=%d", got, want)
		}

		m := mks[0]
		if got, want := m.Name, "stim-onset"; got != want {
			t.Fatalf("invalid marker name: got=%q, want=%q", got, want)
		}
		if got, want := m.Width, 2*time.Millisecond; got != want {
			t.Fatalf("invalid marker width: got=%v, want=%v", got, want)
		}
		if got, want := m.Def.Order, trg.LSBFirst; got != want {
			t.Fatalf("invalid bit order: got=%v, want=%v", got, want)
		}
		if bits, ok := m.Def.NS.Bits(); !ok || bits != 0x01 {
			t.Fatalf("invalid NS mask: bits=0x%02x ok=%v", bits, ok)
		}
		if _, ok := m.Def.SA.Bits(); ok {
			t.Fatalf("SA mask should be absent")
		}

		m = mks[1]
		if got, want := m.Def.Order, trg.MSBFirst; got != want {
			t.Fatalf("invalid bit order: got=%v, want=%v", got, want)
		}
		if bits, ok := m.Def.SA.Bits(); !ok || bits != 0x80 {
			t.Fatalf("invalid SA mask: bits=0x%02x ok=%v", bits, ok)
		}
		if bits, ok := m.Def.GPIO.Bits(); !ok || bits != 0x03 {
			t.Fatalf("invalid GPIO mask: bits=0x%02x ok=%v", bits, ok)
		}
		return nil
	})
}
