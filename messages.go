// messages.go

// This file contains the wire codec for the Tello text SDK: command string
// encoding, parameter clamping, and telemetry frame parsing.

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
	"fmt"
	"strconv"
	"strings"
)

// Vendor limits for the SDK move and speed parameters.
const (
	minMoveCm  = 20
	maxMoveCm  = 500
	minSpeedCm = 10
	maxSpeedCm = 100
)

// FlipType represents a flip direction.
type FlipType int

// Flip types...
const (
	FlipForward FlipType = iota
	FlipLeft
	FlipBackward
	FlipRight
)

// wireString returns the single-letter direction used by the flip command.
func (f FlipType) wireString() string {
	switch f {
	case FlipLeft:
		return "l"
	case FlipRight:
		return "r"
	case FlipBackward:
		return "b"
	default:
		return "f"
	}
}

// ackOK reports whether an acknowledgement payload means success.
// The drone answers either 'ok' or 'error' (plus some garbled variants seen
// in the wild), so anything that is not 'ok' counts as failure.
func ackOK(payload string) bool {
	return strings.EqualFold(strings.TrimSpace(payload), "ok")
}

// clampDistance forces a move distance into the vendor limits [20,500]cm.
// The sign is discarded (direction is carried by the command name) and a
// zero request stays zero so callers can treat it as a no-op.
func clampDistance(cm int) int {
	if cm < 0 {
		cm = -cm
	}
	switch {
	case cm == 0:
		return 0
	case cm < minMoveCm:
		return minMoveCm
	case cm > maxMoveCm:
		return maxMoveCm
	}
	return cm
}

// clampSpeed forces a speed into the vendor limits [10,100]cm/s.
// Anything below 10 comes back as 0 meaning 'speed rejected': a literal 0
// must never reach the drone as it would make the move take forever.
func clampSpeed(cmPerSec int) int {
	if cmPerSec < 0 {
		cmPerSec = -cmPerSec
	}
	switch {
	case cmPerSec < minSpeedCm:
		return 0
	case cmPerSec > maxSpeedCm:
		return maxSpeedCm
	}
	return cmPerSec
}

// clampAxis is the sign-preserving distance clamp used for the axes of the
// compound 'go' command. Zero stays zero.
func clampAxis(cm int) int {
	if cm < 0 {
		return -clampDistance(cm)
	}
	return clampDistance(cm)
}

// normaliseTurn reduces a rotation into (0,360] degrees.
// The caller passes the absolute value; 450 becomes 90, 360 stays 360.
func normaliseTurn(degrees int) int {
	for degrees > 360 {
		degrees -= 360
	}
	return degrees
}

// encodeMove renders a single-axis move, e.g. "forward 100".
func encodeMove(name string, cm int) string {
	return name + " " + strconv.Itoa(cm)
}

// encodeGo renders the compound move "go x y z speed", optionally suffixed
// with a mission pad id for pad-relative navigation.
func encodeGo(x, y, z, speed, padID int) string {
	s := fmt.Sprintf("go %d %d %d %d", x, y, z, speed)
	if padID > 0 {
		s += fmt.Sprintf(" m%d", padID)
	}
	return s
}

// parseTelemetry decodes one state broadcast frame of the form
// "pitch:0;roll:-2;mid:-1;" into key/value pairs.  Values that parse as
// numbers are returned as float64, anything else as the raw string.
// Malformed pairs are skipped rather than failing the whole frame.
func parseTelemetry(frame string) map[string]interface{} {
	fields := make(map[string]interface{})
	for _, pair := range strings.Split(strings.TrimSpace(frame), ";") {
		colon := strings.IndexByte(pair, ':')
		if colon <= 0 {
			continue
		}
		key := pair[:colon]
		raw := pair[colon+1:]
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			fields[key] = f
		} else {
			fields[key] = raw
		}
	}
	return fields
}
