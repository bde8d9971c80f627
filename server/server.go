// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package server exposes a TGU device over HTTP, so stimulus
// presentation software can send markers and operators can inspect
// the device state from a browser.
package server // import "github.com/go-lpc/tgu/server"

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-lpc/tgu"
	"github.com/go-lpc/tgu/trg"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Controller is the part of trg.Device the HTTP layer drives.
type Controller interface {
	Addr() string
	Capabilities() trg.Capabilities
	IsAvailable(timeout time.Duration) bool
	SendMarker(m trg.Marker) error
	StartTriggers(pins ...trg.Pin) error
	StopAndResetAll() error
	Status() (int, error)
}

var _ Controller = (*trg.Device)(nil)

// Server serves the TGU HTTP API.
type Server struct {
	ctl Controller
	msg *log.Logger
	mux *mux.Router
	out io.Writer // access log
}

// New creates an HTTP server driving the provided TGU controller.
// Requests are logged in Apache combined format to out.
func New(ctl Controller, msg *log.Logger, out io.Writer) *Server {
	if msg == nil {
		msg = log.New(os.Stdout, "tgu-srv: ", 0)
	}
	srv := &Server{
		ctl: ctl,
		msg: msg,
		mux: mux.NewRouter(),
		out: out,
	}
	srv.mux.HandleFunc("/", srv.status).Methods(http.MethodGet)
	srv.mux.HandleFunc("/status", srv.status).Methods(http.MethodGet)
	srv.mux.HandleFunc("/caps", srv.caps).Methods(http.MethodGet)
	srv.mux.HandleFunc("/marker", srv.marker).Methods(http.MethodPost)
	srv.mux.HandleFunc("/start", srv.start).Methods(http.MethodPost)
	srv.mux.HandleFunc("/stop", srv.stop).Methods(http.MethodPost)
	return srv
}

// Handler returns the top-level HTTP handler, with access logging
// and panic recovery.
func (srv *Server) Handler() http.Handler {
	var h http.Handler = srv.mux
	h = handlers.RecoveryHandler()(h)
	if srv.out != nil {
		h = handlers.CombinedLoggingHandler(srv.out, h)
	}
	return h
}

func (srv *Server) status(w http.ResponseWriter, r *http.Request) {
	type status struct {
		Version string `json:"version"`
		Addr    string `json:"addr"`
		Online  bool   `json:"online"`
		Status  int    `json:"status,omitempty"`
	}
	vers, _ := tgu.Version()
	sta := status{
		Version: vers,
		Addr:    srv.ctl.Addr(),
		Online:  srv.ctl.IsAvailable(1 * time.Second),
	}
	if sta.Online {
		v, err := srv.ctl.Status()
		if err != nil {
			srv.respondError(w, fmt.Errorf("server: could not query device status: %w", err))
			return
		}
		sta.Status = v
	}
	srv.respondJSON(w, sta)
}

func (srv *Server) caps(w http.ResponseWriter, r *http.Request) {
	srv.respondJSON(w, srv.ctl.Capabilities())
}

func (srv *Server) marker(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NS       *uint8 `json:"ns"`
		SA       *uint8 `json:"sa"`
		GPIO     *uint8 `json:"gpio"`
		MSBFirst bool   `json:"msb_first"`
	}
	err := json.NewDecoder(r.Body).Decode(&req)
	defer r.Body.Close()
	if err != nil {
		srv.respondError(w, fmt.Errorf("server: could not decode marker request: %w", err))
		return
	}

	var mrk trg.Marker
	if req.NS != nil {
		mrk.NS = trg.MaskOf(*req.NS)
	}
	if req.SA != nil {
		mrk.SA = trg.MaskOf(*req.SA)
	}
	if req.GPIO != nil {
		mrk.GPIO = trg.MaskOf(*req.GPIO)
	}
	if req.MSBFirst {
		mrk.Order = trg.MSBFirst
	}

	err = srv.ctl.SendMarker(mrk)
	if err != nil {
		srv.respondError(w, fmt.Errorf("server: could not send marker: %w", err))
		return
	}
	srv.respondJSON(w, struct {
		OK bool `json:"ok"`
	}{OK: true})
}

func (srv *Server) start(w http.ResponseWriter, r *http.Request) {
	err := srv.ctl.StartTriggers()
	if err != nil {
		srv.respondError(w, fmt.Errorf("server: could not start triggers: %w", err))
		return
	}
	srv.respondJSON(w, struct {
		OK bool `json:"ok"`
	}{OK: true})
}

func (srv *Server) stop(w http.ResponseWriter, r *http.Request) {
	err := srv.ctl.StopAndResetAll()
	if err != nil {
		srv.respondError(w, fmt.Errorf("server: could not stop and reset: %w", err))
		return
	}
	srv.respondJSON(w, struct {
		OK bool `json:"ok"`
	}{OK: true})
}

func (srv *Server) respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		srv.msg.Printf("could not encode JSON reply: %+v", err)
	}
}

func (srv *Server) respondError(w http.ResponseWriter, err error) {
	srv.msg.Printf("%+v", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}
