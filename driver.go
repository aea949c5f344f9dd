// driver.go

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
	"math"
	"sync"
	"time"
)

// Driver is the capability surface shared by the hardware driver and the
// simulated one, so flight code and simulators can run against either.
type Driver interface {
	TakeOff() bool
	Land() bool
	Forward(cm int) bool
	Backward(cm int) bool
	Left(cm int) bool
	Right(cm int) bool
	Up(cm int) bool
	Down(cm int) bool
	TurnDegrees(degrees int) bool
	SetSpeed(cmPerSec int) bool
	Sleep(d time.Duration)
}

var (
	_ Driver = (*Tello)(nil)
	_ Driver = (*SimDriver)(nil)
)

const simTakeOffHeightCm = 100

// SimDriver is a pure in-memory Driver maintaining a pose instead of
// talking to hardware. Distances and speeds are clamped exactly as the
// hardware driver clamps them, so flight code behaves the same against
// both. All methods are safe for concurrent use.
type SimDriver struct {
	mu      sync.Mutex
	flying  bool
	x, y, z float64 // cm; x forward, y left, z up, relative to the start point
	heading float64 // degrees clockwise from the starting orientation
	speed   float64 // cm/s
}

// NewSimDriver returns a simulated drone sitting on the ground at the
// origin, facing along +x.
func NewSimDriver() *SimDriver {
	return &SimDriver{speed: maxSpeedCm}
}

// TakeOff launches the simulated drone to a fixed hover height.
func (sim *SimDriver) TakeOff() bool {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	if sim.flying {
		return false
	}
	sim.flying = true
	sim.z = simTakeOffHeightCm
	return true
}

// Land puts the simulated drone back on the ground.
func (sim *SimDriver) Land() bool {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	if !sim.flying {
		return false
	}
	sim.flying = false
	sim.z = 0
	return true
}

// translate moves the drone by a body-frame offset, rotated into the world
// frame by the current heading. Grounded drones reject moves, like the
// real vehicle does.
func (sim *SimDriver) translate(dx, dy, dz float64) bool {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	if !sim.flying {
		return false
	}
	h := sim.heading * math.Pi / 180
	sim.x += dx*math.Cos(h) + dy*math.Sin(h)
	sim.y += -dx*math.Sin(h) + dy*math.Cos(h)
	sim.z += dz
	if sim.z < 0 {
		sim.z = 0
	}
	return true
}

// Forward moves the simulated drone forward, clamped like the hardware.
func (sim *SimDriver) Forward(cm int) bool {
	return sim.translate(float64(clampDistance(cm)), 0, 0)
}

// Backward moves the simulated drone backward.
func (sim *SimDriver) Backward(cm int) bool {
	return sim.translate(-float64(clampDistance(cm)), 0, 0)
}

// Left moves the simulated drone left.
func (sim *SimDriver) Left(cm int) bool {
	return sim.translate(0, float64(clampDistance(cm)), 0)
}

// Right moves the simulated drone right.
func (sim *SimDriver) Right(cm int) bool {
	return sim.translate(0, -float64(clampDistance(cm)), 0)
}

// Up moves the simulated drone up.
func (sim *SimDriver) Up(cm int) bool {
	return sim.translate(0, 0, float64(clampDistance(cm)))
}

// Down moves the simulated drone down, stopping at the ground.
func (sim *SimDriver) Down(cm int) bool {
	return sim.translate(0, 0, -float64(clampDistance(cm)))
}

// TurnDegrees rotates the simulated drone, clockwise for positive degrees.
func (sim *SimDriver) TurnDegrees(degrees int) bool {
	if degrees == 0 {
		return true
	}
	turn := normaliseTurn(abs(degrees))
	sim.mu.Lock()
	defer sim.mu.Unlock()
	if !sim.flying {
		return false
	}
	if degrees > 0 {
		sim.heading += float64(turn)
	} else {
		sim.heading -= float64(turn)
	}
	sim.heading = math.Mod(sim.heading+360, 360)
	return true
}

// SetSpeed sets the simulated cruise speed with the hardware clamps.
func (sim *SimDriver) SetSpeed(cmPerSec int) bool {
	s := clampSpeed(cmPerSec)
	if s == 0 {
		return false
	}
	sim.mu.Lock()
	sim.speed = float64(s)
	sim.mu.Unlock()
	return true
}

// Sleep pauses the caller; simulated time is wall time.
func (sim *SimDriver) Sleep(d time.Duration) {
	time.Sleep(d)
}

// Position returns the drone's offset from its start point in centimetres.
func (sim *SimDriver) Position() (x, y, z float64) {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.x, sim.y, sim.z
}

// Heading returns the drone's heading in degrees clockwise from start.
func (sim *SimDriver) Heading() float64 {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.heading
}

// Flying reports whether the simulated drone is airborne.
func (sim *SimDriver) Flying() bool {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.flying
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
