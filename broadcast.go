// broadcast.go

// This file contains the websocket fan-out of the telemetry feed - the
// surface monitoring GUIs consume.

// Copyright (C) 2019  The dronelab authors

// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.

// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package tello

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"
)

// broadcaster fans messages out to every attached websocket.
// Sockets that fail a write are dropped from the list.
type broadcaster struct {
	sockets   []*websocket.Conn
	socketsMu *deadlock.Mutex
	messages  chan []byte
	log       *logrus.Logger
}

func newBroadcaster(log *logrus.Logger) *broadcaster {
	b := &broadcaster{
		sockets:   make([]*websocket.Conn, 0),
		socketsMu: &deadlock.Mutex{},
		messages:  make(chan []byte, 64),
		log:       log,
	}
	go b.writer()
	return b
}

func (b *broadcaster) addSocket(sock *websocket.Conn) {
	b.socketsMu.Lock()
	b.sockets = append(b.sockets, sock)
	b.socketsMu.Unlock()
}

func (b *broadcaster) sendJSON(i interface{}) {
	msg, err := json.Marshal(&i)
	if err != nil {
		b.log.WithError(err).Error("Could not marshal broadcast message")
		return
	}
	select {
	case b.messages <- msg:
	default: // a slow writer must never stall telemetry
	}
}

func (b *broadcaster) writer() {
	for msg := range b.messages {
		// send to all, keeping only the sockets still writeable
		writeable := make([]*websocket.Conn, 0)
		b.socketsMu.Lock()
		for _, sock := range b.sockets {
			err := sock.SetWriteDeadline(time.Now().Add(time.Second))
			_, err2 := sock.Write(msg)
			if err == nil && err2 == nil {
				writeable = append(writeable, sock)
			}
		}
		b.sockets = writeable
		b.socketsMu.Unlock()
	}
}

// TelemetryServer republishes a driver's telemetry table to websocket
// clients as periodic JSON snapshots. Create it with NewTelemetryServer
// after the driver is connected.
type TelemetryServer struct {
	drone *Tello
	bc    *broadcaster
	srv   *http.Server
	log   *logrus.Logger
}

// NewTelemetryServer wires a telemetry stream from the drone to a
// websocket endpoint at /telemetry and prepares an HTTP server for it on
// addr. Snapshots are pushed every period. The republisher stops by itself
// when the drone is disconnected.
func NewTelemetryServer(drone *Tello, addr string, period time.Duration) *TelemetryServer {
	ts := &TelemetryServer{
		drone: drone,
		bc:    newBroadcaster(drone.log),
		log:   drone.log,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", func(w http.ResponseWriter, req *http.Request) {
		s := websocket.Server{Handler: websocket.Handler(ts.handleTelemetryWS)}
		s.ServeHTTP(w, req)
	})
	ts.srv = &http.Server{Addr: addr, Handler: mux}
	go ts.publish(period)
	return ts
}

// Handler returns the HTTP handler serving the /telemetry websocket, for
// mounting on an existing server.
func (ts *TelemetryServer) Handler() http.Handler {
	return ts.srv.Handler
}

// ListenAndServe runs the built-in HTTP server. It blocks like
// http.Server.ListenAndServe and returns nil on graceful shutdown.
func (ts *TelemetryServer) ListenAndServe() error {
	ts.log.WithField("addr", ts.srv.Addr).Info("Telemetry websocket server listening")
	if err := ts.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the built-in HTTP server.
func (ts *TelemetryServer) Shutdown(ctx context.Context) error {
	return ts.srv.Shutdown(ctx)
}

func (ts *TelemetryServer) handleTelemetryWS(conn *websocket.Conn) {
	ts.bc.addSocket(conn)
	// hold the connection open until the client goes away; clients are not
	// expected to send anything meaningful
	buf := make([]byte, 64)
	for {
		if _, err := conn.Read(buf); err != nil {
			break
		}
	}
}

func (ts *TelemetryServer) publish(period time.Duration) {
	stream, err := ts.drone.StreamTelemetry(period)
	if err != nil {
		ts.log.WithError(err).Error("Telemetry server could not start streaming")
		return
	}
	for snapshot := range stream {
		ts.bc.sendJSON(snapshot)
	}
	close(ts.bc.messages)
	ts.log.Debug("Telemetry republisher stopped")
}
