// tello_test.go

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
	"io/ioutil"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// fakeDrone is a loopback stand-in for the vehicle: it records every
// command datagram it receives and answers from a scripted reply table.
// Commands not in the table go unanswered, like a drone out of range.
type fakeDrone struct {
	conn *net.UDPConn

	mu       sync.Mutex
	received []string
	replies  map[string]string
}

func newFakeDrone(t *testing.T, replies map[string]string) *fakeDrone {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("could not bind the fake drone socket: %v", err)
	}
	fd := &fakeDrone{conn: conn, replies: replies}
	go fd.serve()
	return fd
}

func (fd *fakeDrone) port() int {
	return fd.conn.LocalAddr().(*net.UDPAddr).Port
}

func (fd *fakeDrone) serve() {
	buff := make([]byte, 1024)
	for {
		n, addr, err := fd.conn.ReadFromUDP(buff)
		if err != nil {
			return
		}
		cmd := strings.TrimSpace(string(buff[:n]))
		fd.mu.Lock()
		fd.received = append(fd.received, cmd)
		reply, ok := fd.replies[cmd]
		fd.mu.Unlock()
		if ok {
			fd.conn.WriteToUDP([]byte(reply), addr)
		}
	}
}

func (fd *fakeDrone) close() {
	fd.conn.Close()
}

// count returns how many times the given command was transmitted.
func (fd *fakeDrone) count(cmd string) int {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	n := 0
	for _, c := range fd.received {
		if c == cmd {
			n++
		}
	}
	return n
}

func (fd *fakeDrone) commandCount() int {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return len(fd.received)
}

func (fd *fakeDrone) commands() []string {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return append([]string(nil), fd.received...)
}

// sendTelemetry pushes a state frame at the driver's telemetry port.
func (fd *fakeDrone) sendTelemetry(frame string, port int) {
	fd.conn.WriteToUDP([]byte(frame), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
}

func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("could not find a free UDP port: %v", err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	conn.Close()
	return port
}

// testConfig points a driver at the fake drone with a fast retry policy
// so the unanswered-command tests don't take seconds each.
func testConfig(t *testing.T, fd *fakeDrone) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DroneAddr = "127.0.0.1"
	cfg.DroneCommandPort = fd.port()
	cfg.LocalCommandPort = freeUDPPort(t)
	cfg.LocalStatePort = freeUDPPort(t)
	cfg.MaxAttempts = 3
	cfg.PollIntervalMs = 50
	cfg.SettleMs = 0
	return cfg
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = ioutil.Discard
	return log
}

func newTestDriver(t *testing.T, replies map[string]string) (*Tello, *fakeDrone) {
	t.Helper()
	fd := newFakeDrone(t, replies)
	t.Cleanup(fd.close)
	drone := NewDriver(testConfig(t, fd))
	drone.SetLogger(quietLogger())
	return drone, fd
}

func waitForSensor(t *testing.T, drone *Tello, key string) interface{} {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v, ok := drone.Sensor(key); ok {
			return v
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("sensor %q never arrived", key)
	return nil
}

func TestConnectAcked(t *testing.T) {
	drone, fd := newTestDriver(t, map[string]string{"command": "ok"})

	if !drone.Connect() {
		t.Fatal("Connect should succeed when the drone acks promptly")
	}
	defer drone.Disconnect()

	if n := fd.count("command"); n != 1 {
		t.Errorf("expected exactly 1 'command' transmission, got %d", n)
	}
	if !drone.Connected() {
		t.Error("driver should report connected")
	}
}

func TestRetryBudgetExhausted(t *testing.T) {
	drone, fd := newTestDriver(t, map[string]string{"command": "ok"})

	if !drone.Connect() {
		t.Fatal("Connect failed")
	}
	defer drone.Disconnect()

	// the fake never answers 'takeoff'
	start := time.Now()
	if drone.TakeOff() {
		t.Error("TakeOff should fail when no ack ever arrives")
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("retry budget spent too quickly: %v", elapsed)
	}
	if n := fd.count("takeoff"); n != 3 {
		t.Errorf("expected exactly 3 'takeoff' transmissions, got %d", n)
	}
}

func TestAckInterpretation(t *testing.T) {
	drone, _ := newTestDriver(t, map[string]string{
		"command": "ok",
		"takeoff": "OK", // case must not matter
		"land":    "error",
		"flip l":  "ok",
		"stop":    "ok",
	})

	if !drone.Connect() {
		t.Fatal("Connect failed")
	}
	defer drone.Disconnect()

	if !drone.TakeOff() {
		t.Error("an upper-case OK should count as success")
	}
	if drone.Land() {
		t.Error("an 'error' ack should count as failure")
	}
	if !drone.Flip(FlipLeft, 0) {
		t.Error("Flip should succeed on an 'ok' ack")
	}
	if !drone.Hover(0) {
		t.Error("Hover should succeed on an 'ok' ack")
	}
}

func TestQueries(t *testing.T) {
	drone, _ := newTestDriver(t, map[string]string{
		"command":  "ok",
		"battery?": "87",
		"sdk?":     "20",
	})

	if !drone.Connect() {
		t.Fatal("Connect failed")
	}
	defer drone.Disconnect()

	if got := drone.Battery(); got != "87" {
		t.Errorf("Battery() = %q, want \"87\"", got)
	}
	if got := drone.SDKVersion(); got != "20" {
		t.Errorf("SDKVersion() = %q, want \"20\"", got)
	}
	// unanswered query resolves to an empty payload, not an error
	if got := drone.WifiSNR(); got != "" {
		t.Errorf("unanswered WifiSNR() = %q, want \"\"", got)
	}
}

func TestTelemetryFeed(t *testing.T) {
	drone, fd := newTestDriver(t, map[string]string{"command": "ok"})

	if !drone.Connect() {
		t.Fatal("Connect failed")
	}
	defer drone.Disconnect()

	if _, ok := drone.VisibleMissionPadID(); ok {
		t.Error("mission pad id should be absent before any state frame")
	}

	fd.sendTelemetry("pitch:10;roll:-2;mid:3;", drone.cfg.LocalStatePort)
	if v := waitForSensor(t, drone, "mid"); v != 3.0 {
		t.Errorf("mid = %v, want 3.0", v)
	}
	if v, _ := drone.Sensor("roll"); v != -2.0 {
		t.Errorf("roll = %v, want -2.0", v)
	}

	id, ok := drone.VisibleMissionPadID()
	if !ok || id != 3 {
		t.Errorf("VisibleMissionPadID() = %d,%v, want 3,true", id, ok)
	}

	// non-numeric values are kept as raw strings, and later frames
	// overwrite earlier values key-by-key
	fd.sendTelemetry("x:abc;mid:-1;", drone.cfg.LocalStatePort)
	if v := waitForSensor(t, drone, "x"); v != "abc" {
		t.Errorf("x = %v, want \"abc\"", v)
	}
	if id, ok := drone.VisibleMissionPadID(); !ok || id != -1 {
		t.Errorf("VisibleMissionPadID() = %d,%v, want -1,true after pad lost", id, ok)
	}
	if v, _ := drone.Sensor("pitch"); v != 10.0 {
		t.Error("table must never be cleared as a whole")
	}
}

func TestNoOpsSendNothing(t *testing.T) {
	drone, fd := newTestDriver(t, map[string]string{"command": "ok"})

	if !drone.Connect() {
		t.Fatal("Connect failed")
	}
	defer drone.Disconnect()

	baseline := fd.commandCount()
	if !drone.TurnDegrees(0) {
		t.Error("a zero turn is trivially successful")
	}
	if !drone.Forward(0) {
		t.Error("a zero move is trivially successful")
	}
	if drone.SetSpeed(5) {
		t.Error("a sub-minimum speed must be rejected")
	}
	time.Sleep(100 * time.Millisecond)
	if n := fd.commandCount(); n != baseline {
		t.Errorf("no-op operations transmitted %d datagrams", n-baseline)
	}
}

func TestTurnWireCommands(t *testing.T) {
	drone, fd := newTestDriver(t, map[string]string{
		"command": "ok",
		"cw 90":   "ok",
		"ccw 90":  "ok",
	})

	if !drone.Connect() {
		t.Fatal("Connect failed")
	}
	defer drone.Disconnect()

	if !drone.TurnDegrees(450) {
		t.Error("TurnDegrees(450) should be acked as 'cw 90'")
	}
	if !drone.TurnDegrees(-450) {
		t.Error("TurnDegrees(-450) should be acked as 'ccw 90'")
	}
	if fd.count("cw 90") != 1 || fd.count("ccw 90") != 1 {
		t.Error("turns were not reduced modulo 360 on the wire")
	}
}

func TestMoveAtSpeedVariants(t *testing.T) {
	drone, fd := newTestDriver(t, map[string]string{"command": "ok"})

	if !drone.Connect() {
		t.Fatal("Connect failed")
	}
	defer drone.Disconnect()

	// valid speed: one fire-and-forget 'go' on the forward axis
	drone.ForwardAt(100, 50)
	// rejected speed: falls back to the plain acked move
	drone.UpAt(30, 5)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fd.count("go 100 0 0 50") >= 1 && fd.count("up 30") >= 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("expected 'go 100 0 0 50' and 'up 30' on the wire, got %v", fd.commands())
}

func TestDisconnectTwice(t *testing.T) {
	drone, _ := newTestDriver(t, map[string]string{"command": "ok"})

	if !drone.Connect() {
		t.Fatal("Connect failed")
	}
	// both listeners are blocked in a receive right now; neither close nor
	// a repeat close may panic
	drone.Disconnect()
	drone.Disconnect()

	if drone.Connected() {
		t.Error("driver should report disconnected")
	}
}

func TestStreamTelemetry(t *testing.T) {
	drone, fd := newTestDriver(t, map[string]string{"command": "ok"})

	if !drone.Connect() {
		t.Fatal("Connect failed")
	}

	stream, err := drone.StreamTelemetry(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("StreamTelemetry failed: %v", err)
	}

	fd.sendTelemetry("bat:87;", drone.cfg.LocalStatePort)
	waitForSensor(t, drone, "bat")

	// early snapshots may predate the frame; wait for one that carries it
	waitSnap := time.After(2 * time.Second)
snapshots:
	for {
		select {
		case snap := <-stream:
			if snap["bat"] == 87.0 {
				break snapshots
			}
		case <-waitSnap:
			t.Fatal("no telemetry snapshot carrying 'bat' within 2s")
		}
	}

	drone.Disconnect()
	// the stream must end once the driver is shut down
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-stream:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after Disconnect")
		}
	}
}

func TestStreamTelemetryRequiresConnection(t *testing.T) {
	fd := newFakeDrone(t, nil)
	t.Cleanup(fd.close)
	drone := NewDriver(testConfig(t, fd))
	drone.SetLogger(quietLogger())

	if _, err := drone.StreamTelemetry(time.Second); err == nil {
		t.Error("StreamTelemetry should fail before Connect")
	}
}
