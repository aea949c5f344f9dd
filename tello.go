// tello.go

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
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	receiveTimeout = 5 * time.Second        // deadline on each listener receive
	receiveBackoff = 100 * time.Millisecond // pause after a receive timeout
	maxFrameSize   = 1024                   // acks and state frames are single short lines
)

// Tello holds the current state of a connection to a Tello drone.
// One instance drives one drone; create it with NewDriver.
type Tello struct {
	cfg       Config
	droneAddr *net.UDPAddr

	cmdConn   *net.UDPConn // commands out, acknowledgements back on the same socket
	stateConn *net.UDPConn // receive-only telemetry broadcasts

	listenMu    sync.RWMutex // protects the lifecycle fields below
	isListening bool         // the single stop signal both listener loops watch
	stopChan    chan struct{}

	listeners sync.WaitGroup

	sendMu sync.Mutex // serialises commands: the protocol has no correlation ids,
	// so at most one command may be awaiting its acknowledgement at a time

	ackMu       sync.Mutex // protects the acknowledgement slot
	ackReceived bool
	ackPayload  string

	sensorMu sync.RWMutex // protects the telemetry table
	sensors  map[string]interface{}

	log *logrus.Logger
}

// NewDriver returns a driver for a drone reachable per the given config.
// Nothing touches the network until Connect is called.
func NewDriver(cfg Config) *Tello {
	t := &Tello{
		cfg:     cfg,
		sensors: make(map[string]interface{}),
		log:     logrus.New(),
	}
	t.log.Formatter = new(logrus.TextFormatter)
	t.log.Level = logrus.InfoLevel
	t.log.Out = os.Stdout
	return t
}

// NewDefaultDriver returns a driver for a drone on the factory network
// addresses (192.168.10.1, command port 8889, state port 8890).
func NewDefaultDriver() *Tello {
	return NewDriver(DefaultConfig())
}

// SetLogger replaces the driver's diagnostics sink.
// Call it before Connect; the listener loops log through it.
func (tello *Tello) SetLogger(log *logrus.Logger) {
	tello.log = log
}

// Connect opens both UDP endpoints, starts the acknowledgement and
// telemetry listeners, and puts the drone into SDK mode by sending the
// 'command' command. The result is the drone's acknowledgement: false
// means the drone never answered ok within the retry budget.
//
// A failure to bind either socket is logged but not fatal - the driver
// carries on degraded and the caller sees the failure through the
// returned bool rather than through an error.
func (tello *Tello) Connect() bool {
	tello.listenMu.Lock()
	if tello.isListening {
		tello.listenMu.Unlock()
		tello.log.Warn("Connect called on an already-connected driver")
		return false
	}
	tello.sensors = make(map[string]interface{})
	tello.stopChan = make(chan struct{})
	tello.isListening = true
	tello.listenMu.Unlock()

	tello.openSockets()

	// listeners must be running before anything is sent
	if tello.cmdConn != nil {
		tello.listeners.Add(1)
		go tello.ackListener()
	}
	if tello.stateConn != nil {
		tello.listeners.Add(1)
		go tello.telemetryListener()
	}

	return tello.sendAndWait("command")
}

// Connected reports whether the listener loops are running.
func (tello *Tello) Connected() bool {
	return tello.listening()
}

// Disconnect stops both listener loops and closes the sockets.
// It is safe to call twice, and safe to call while a listener is blocked
// in a receive: closing the socket unblocks the receive, the loop observes
// the cleared flag and returns, and we join it before returning.
func (tello *Tello) Disconnect() {
	tello.listenMu.Lock()
	wasListening := tello.isListening
	tello.isListening = false
	if wasListening {
		close(tello.stopChan)
	}
	tello.listenMu.Unlock()

	// Errors here are expected: a listener may be using the socket right
	// now, and on a second Disconnect the sockets are already closed.
	if tello.cmdConn != nil {
		if err := tello.cmdConn.Close(); err != nil {
			tello.log.WithError(err).Debug("Closing the command socket")
		}
	}
	if tello.stateConn != nil {
		if err := tello.stateConn.Close(); err != nil {
			tello.log.WithError(err).Debug("Closing the telemetry socket")
		}
	}

	tello.listeners.Wait()
	tello.log.Info("Disconnected")
}

// openSockets binds the command endpoint (send commands, receive acks) and
// the receive-only telemetry endpoint. Bind failures leave the respective
// conn nil and the driver degraded, matching the historical behaviour of
// this protocol family.
func (tello *Tello) openSockets() {
	droneAddr, err := net.ResolveUDPAddr("udp",
		tello.cfg.DroneAddr+":"+strconv.Itoa(tello.cfg.DroneCommandPort))
	if err != nil {
		tello.log.WithError(err).Error("Could not resolve the drone address")
	}
	tello.droneAddr = droneAddr

	tello.cmdConn, err = net.ListenUDP("udp", &net.UDPAddr{Port: tello.cfg.LocalCommandPort})
	if err != nil {
		tello.log.WithError(err).Error("Could not bind the command socket")
		tello.cmdConn = nil
	}
	tello.stateConn, err = net.ListenUDP("udp", &net.UDPAddr{Port: tello.cfg.LocalStatePort})
	if err != nil {
		tello.log.WithError(err).Error("Could not bind the telemetry socket")
		tello.stateConn = nil
	}
}

func (tello *Tello) listening() bool {
	tello.listenMu.RLock()
	l := tello.isListening
	tello.listenMu.RUnlock()
	return l
}

// ackListener receives acknowledgement payloads on the command socket and
// stores each one verbatim in the acknowledgement slot. It only returns
// when the stop flag is cleared; every receive error is swallowed because
// the socket may be mid-shutdown under our feet.
func (tello *Tello) ackListener() {
	defer tello.listeners.Done()
	buff := make([]byte, maxFrameSize)
	for tello.listening() {
		tello.cmdConn.SetReadDeadline(time.Now().Add(receiveTimeout))
		n, _, err := tello.cmdConn.ReadFromUDP(buff)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				tello.sleep(receiveBackoff)
			}
			continue
		}
		payload := strings.TrimSpace(string(buff[:n]))
		tello.ackMu.Lock()
		tello.ackPayload = payload
		tello.ackReceived = true
		tello.ackMu.Unlock()
		tello.log.WithField("payload", payload).Debug("Acknowledgement received")
	}
	tello.log.Debug("Acknowledgement listener stopped")
}

// telemetryListener receives the drone's periodic state broadcasts and
// folds each frame into the telemetry table, last write wins.
func (tello *Tello) telemetryListener() {
	defer tello.listeners.Done()
	buff := make([]byte, maxFrameSize)
	for tello.listening() {
		tello.stateConn.SetReadDeadline(time.Now().Add(receiveTimeout))
		n, _, err := tello.stateConn.ReadFromUDP(buff)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				tello.sleep(receiveBackoff)
			}
			continue
		}
		tello.updateSensors(string(buff[:n]))
	}
	tello.log.Debug("Telemetry listener stopped")
}

func (tello *Tello) updateSensors(frame string) {
	fields := parseTelemetry(frame)
	tello.sensorMu.Lock()
	for key, value := range fields {
		tello.sensors[key] = value
	}
	tello.sensorMu.Unlock()
}

// sendForResponse transmits a command and waits for its acknowledgement,
// retransmitting on the poll interval until the retry budget is spent.
// It returns the raw acknowledgement payload and whether one arrived.
//
// The protocol carries no correlation id, so the slot is cleared before
// the first transmission and commands are strictly serialised on sendMu:
// an ack observed here can only belong to a retransmission of this same
// command, never to a command issued before the clear.
func (tello *Tello) sendForResponse(cmd string) (payload string, received bool) {
	tello.sendMu.Lock()
	defer tello.sendMu.Unlock()

	tello.ackMu.Lock()
	tello.ackReceived = false
	tello.ackPayload = ""
	tello.ackMu.Unlock()

	for attempt := 0; attempt < tello.cfg.maxAttempts() && !tello.ackArrived(); attempt++ {
		tello.log.WithFields(logrus.Fields{"command": cmd, "attempt": attempt + 1}).Debug("Transmitting")
		tello.transmit(cmd)
		tello.sleep(tello.cfg.pollInterval())
	}

	tello.ackMu.Lock()
	payload = tello.ackPayload
	received = tello.ackReceived
	tello.ackMu.Unlock()
	return payload, received
}

// sendAndWait is sendForResponse for boolean-style commands: true iff the
// drone answered 'ok' (case-insensitively) within the retry budget.
func (tello *Tello) sendAndWait(cmd string) bool {
	payload, _ := tello.sendForResponse(cmd)
	return ackOK(payload)
}

// sendNoWait transmits a command the drone is documented not to
// acknowledge, fire-and-forget.
func (tello *Tello) sendNoWait(cmd string) {
	tello.transmit(cmd)
}

func (tello *Tello) ackArrived() bool {
	tello.ackMu.Lock()
	received := tello.ackReceived
	tello.ackMu.Unlock()
	return received
}

func (tello *Tello) transmit(cmd string) {
	if tello.cmdConn == nil || tello.droneAddr == nil {
		tello.log.WithField("command", cmd).Warn("No command socket, transmission dropped")
		return
	}
	if _, err := tello.cmdConn.WriteToUDP([]byte(cmd), tello.droneAddr); err != nil {
		tello.log.WithError(err).WithField("command", cmd).Warn("Transmit failed")
	}
}

// Sleep pauses the caller for the given duration, waking early if the
// driver is disconnected meanwhile. Flight scripts should prefer this over
// time.Sleep so a shutdown is never stuck behind a long manoeuvre pause.
func (tello *Tello) Sleep(d time.Duration) {
	tello.sleep(d)
}

func (tello *Tello) sleep(d time.Duration) {
	tello.listenMu.RLock()
	stop := tello.stopChan
	tello.listenMu.RUnlock()
	if stop == nil {
		time.Sleep(d)
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
	case <-timer.C:
	}
}

// Sensors returns a copy of the current telemetry table. Keys appear as
// the drone first reports them; values are float64 where the field was
// numeric, otherwise the raw string.
func (tello *Tello) Sensors() map[string]interface{} {
	tello.sensorMu.RLock()
	defer tello.sensorMu.RUnlock()
	snapshot := make(map[string]interface{}, len(tello.sensors))
	for key, value := range tello.sensors {
		snapshot[key] = value
	}
	return snapshot
}

// Sensor returns a single field from the telemetry table.
// ok is false if the drone has not reported the key yet.
func (tello *Tello) Sensor(key string) (value interface{}, ok bool) {
	tello.sensorMu.RLock()
	value, ok = tello.sensors[key]
	tello.sensorMu.RUnlock()
	return value, ok
}

// StreamTelemetry starts a Goroutine which sends a telemetry snapshot to
// the returned channel every period. The streamer does not block on the
// channel, so unconsumed snapshots are lost. The channel is closed when
// the driver is disconnected.
func (tello *Tello) StreamTelemetry(period time.Duration) (<-chan map[string]interface{}, error) {
	tello.listenMu.RLock()
	stop := tello.stopChan
	listening := tello.isListening
	tello.listenMu.RUnlock()
	if !listening {
		return nil, errors.New("not connected to the drone")
	}

	snapChan := make(chan map[string]interface{}, 2)
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				close(snapChan)
				return
			case <-ticker.C:
				select {
				case snapChan <- tello.Sensors():
				default:
				}
			}
		}
	}()
	return snapChan, nil
}
