// commands.go

// This file contains the high-level Tello flight command API.

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

import "time"

// TakeOff launches the drone and pauses for the manoeuvre to finish.
func (tello *Tello) TakeOff() bool {
	ok := tello.sendAndWait("takeoff")
	if ok {
		tello.sleep(tello.cfg.settle())
	}
	return ok
}

// Land lands the drone and pauses for the manoeuvre to finish.
func (tello *Tello) Land() bool {
	ok := tello.sendAndWait("land")
	if ok {
		tello.sleep(tello.cfg.settle())
	}
	return ok
}

// Hover halts all movement, then pauses for the given settle duration
// (zero for none).
func (tello *Tello) Hover(settle time.Duration) bool {
	ok := tello.sendAndWait("stop")
	if ok && settle > 0 {
		tello.sleep(settle)
	}
	return ok
}

// Flip performs a flip in the given direction, then pauses for the given
// settle duration so the drone can stabilise before the next command.
func (tello *Tello) Flip(direction FlipType, settle time.Duration) bool {
	ok := tello.sendAndWait("flip " + direction.wireString())
	if ok && settle > 0 {
		tello.sleep(settle)
	}
	return ok
}

// move clamps and sends a single-axis move. A zero distance is a no-op
// and counts as trivially successful.
func (tello *Tello) move(name string, cm int) bool {
	cm = clampDistance(cm)
	if cm == 0 {
		return true
	}
	return tello.sendAndWait(encodeMove(name, cm))
}

// Forward moves the drone forward by the given distance in centimetres,
// clamped into the vendor limits [20,500]. Zero is a no-op.
func (tello *Tello) Forward(cm int) bool { return tello.move("forward", cm) }

// Backward moves the drone backward by the given distance in centimetres.
func (tello *Tello) Backward(cm int) bool { return tello.move("back", cm) }

// Left moves the drone left by the given distance in centimetres.
func (tello *Tello) Left(cm int) bool { return tello.move("left", cm) }

// Right moves the drone right by the given distance in centimetres.
func (tello *Tello) Right(cm int) bool { return tello.move("right", cm) }

// Up moves the drone up by the given distance in centimetres.
func (tello *Tello) Up(cm int) bool { return tello.move("up", cm) }

// Down moves the drone down by the given distance in centimetres.
func (tello *Tello) Down(cm int) bool { return tello.move("down", cm) }

// moveAt is the move variant with an explicit speed. It is encoded as a
// single-axis 'go' which the drone does not acknowledge, so it goes out
// fire-and-forget. A speed below the vendor minimum is rejected and the
// move falls back to the plain acknowledged form at the drone's current
// speed setting.
func (tello *Tello) moveAt(name string, ux, uy, uz, cm, speed int) {
	d := clampDistance(cm)
	if d == 0 {
		return
	}
	s := clampSpeed(speed)
	if s == 0 {
		tello.move(name, d)
		return
	}
	tello.sendNoWait(encodeGo(ux*d, uy*d, uz*d, s, 0))
}

// ForwardAt moves forward at an explicit speed in cm/s; see moveAt for the
// acknowledgement semantics of this form.
func (tello *Tello) ForwardAt(cm, speed int) { tello.moveAt("forward", 1, 0, 0, cm, speed) }

// BackwardAt moves backward at an explicit speed in cm/s.
func (tello *Tello) BackwardAt(cm, speed int) { tello.moveAt("back", -1, 0, 0, cm, speed) }

// LeftAt moves left at an explicit speed in cm/s.
func (tello *Tello) LeftAt(cm, speed int) { tello.moveAt("left", 0, 1, 0, cm, speed) }

// RightAt moves right at an explicit speed in cm/s.
func (tello *Tello) RightAt(cm, speed int) { tello.moveAt("right", 0, -1, 0, cm, speed) }

// UpAt moves up at an explicit speed in cm/s.
func (tello *Tello) UpAt(cm, speed int) { tello.moveAt("up", 0, 0, 1, cm, speed) }

// DownAt moves down at an explicit speed in cm/s.
func (tello *Tello) DownAt(cm, speed int) { tello.moveAt("down", 0, 0, -1, cm, speed) }

// TurnDegrees rotates clockwise for positive degrees and anticlockwise for
// negative ones. The rotation is reduced into (0,360]; zero is a no-op.
func (tello *Tello) TurnDegrees(degrees int) bool {
	switch {
	case degrees > 0:
		return tello.sendAndWait(encodeMove("cw", normaliseTurn(degrees)))
	case degrees < 0:
		return tello.sendAndWait(encodeMove("ccw", normaliseTurn(-degrees)))
	}
	return true
}

// SetSpeed sets the drone's cruise speed in cm/s, clamped into [10,100].
// A speed below the vendor minimum is rejected without transmitting
// anything - a literal zero would make every subsequent move take forever.
func (tello *Tello) SetSpeed(cmPerSec int) bool {
	s := clampSpeed(cmPerSec)
	if s == 0 {
		tello.log.WithField("speed", cmPerSec).Warn("Speed below vendor minimum, rejected")
		return false
	}
	return tello.sendAndWait(encodeMove("speed", s))
}

// Go flies to the given offset from the current position, each axis in
// centimetres and clamped independently, at the given speed.
func (tello *Tello) Go(x, y, z, speed int) bool {
	s := clampSpeed(speed)
	if s == 0 {
		tello.log.WithField("speed", speed).Warn("Speed below vendor minimum, rejected")
		return false
	}
	return tello.sendAndWait(encodeGo(clampAxis(x), clampAxis(y), clampAxis(z), s, 0))
}

// GoToMissionPadLocation flies to coordinates relative to the given
// mission pad. The pad must currently be visible to the drone's vision
// system for the command to succeed.
func (tello *Tello) GoToMissionPadLocation(x, y, z, speed, padID int) bool {
	if padID <= 0 {
		tello.log.WithField("padID", padID).Warn("Invalid mission pad id")
		return false
	}
	s := clampSpeed(speed)
	if s == 0 {
		tello.log.WithField("speed", speed).Warn("Speed below vendor minimum, rejected")
		return false
	}
	return tello.sendAndWait(encodeGo(clampAxis(x), clampAxis(y), clampAxis(z), s, padID))
}

// VisibleMissionPadID reports the id of the mission pad the drone's
// downward vision currently sees, read straight from the telemetry table -
// no command is transmitted. ok is false until a state frame carrying the
// 'mid' field has arrived; the drone itself reports -1 for 'no pad'.
func (tello *Tello) VisibleMissionPadID() (id int, ok bool) {
	value, present := tello.Sensor("mid")
	if !present {
		return 0, false
	}
	f, numeric := value.(float64)
	if !numeric {
		return 0, false
	}
	return int(f), true
}

// query sends a numeric-query command and returns the drone's raw reply.
// An empty string means the query went unanswered within the retry budget.
func (tello *Tello) query(cmd string) string {
	payload, received := tello.sendForResponse(cmd)
	if !received {
		tello.log.WithField("command", cmd).Warn("Query went unanswered")
	}
	return payload
}

// Battery returns the battery charge percentage as reported by the drone.
func (tello *Tello) Battery() string { return tello.query("battery?") }

// Speed returns the current speed setting as reported by the drone.
func (tello *Tello) Speed() string { return tello.query("speed?") }

// FlightTime returns the accumulated motor-on time as reported by the drone.
func (tello *Tello) FlightTime() string { return tello.query("time?") }

// WifiSNR returns the wifi signal-to-noise ratio as reported by the drone.
func (tello *Tello) WifiSNR() string { return tello.query("wifi?") }

// SerialNumber returns the drone's serial number.
func (tello *Tello) SerialNumber() string { return tello.query("sn?") }

// SDKVersion returns the SDK version the drone's firmware speaks.
func (tello *Tello) SDKVersion() string { return tello.query("sdk?") }
