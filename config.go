// config.go

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
	"io/ioutil"
	"time"

	"github.com/flynn/json5"
)

// Default network addresses per the vendor SDK.
const (
	defaultTelloAddr        = "192.168.10.1"
	defaultTelloCommandPort = 8889
	defaultLocalCommandPort = 8889
	defaultLocalStatePort   = 8890
)

// Default command retry policy and manoeuvre settle time.
const (
	defaultMaxAttempts  = 3
	defaultPollInterval = time.Second
	defaultSettle       = 5 * time.Second
)

// Config holds the tunable parameters of a driver instance.
// The zero value is not usable, start from DefaultConfig().
type Config struct {
	DroneAddr        string `json:"droneAddr"`        // IP or hostname of the drone
	DroneCommandPort int    `json:"droneCommandPort"` // port the drone listens for commands on
	LocalCommandPort int    `json:"localCommandPort"` // local port for sending commands and receiving acks
	LocalStatePort   int    `json:"localStatePort"`   // local port the drone broadcasts telemetry to

	MaxAttempts    int `json:"maxAttempts"`    // transmissions per command before giving up
	PollIntervalMs int `json:"pollIntervalMs"` // wait between transmissions for the ack to arrive
	SettleMs       int `json:"settleMs"`       // pause after takeoff/land for the manoeuvre to finish
}

// DefaultConfig returns the configuration for a drone on its factory
// network addresses with the vendor-recommended retry policy.
func DefaultConfig() Config {
	return Config{
		DroneAddr:        defaultTelloAddr,
		DroneCommandPort: defaultTelloCommandPort,
		LocalCommandPort: defaultLocalCommandPort,
		LocalStatePort:   defaultLocalStatePort,
		MaxAttempts:      defaultMaxAttempts,
		PollIntervalMs:   int(defaultPollInterval / time.Millisecond),
		SettleMs:         int(defaultSettle / time.Millisecond),
	}
}

// LoadConfig reads a JSON5 config file and merges it over the defaults,
// so a file only needs to name the fields it wants to change.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("LoadConfig: %v", err)
	}
	if err = json5.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("LoadConfig: json5.Unmarshal: %v", err)
	}
	return cfg, nil
}

func (c Config) pollInterval() time.Duration {
	if c.PollIntervalMs <= 0 {
		return defaultPollInterval
	}
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c Config) settle() time.Duration {
	if c.SettleMs < 0 {
		return 0
	}
	return time.Duration(c.SettleMs) * time.Millisecond
}

func (c Config) maxAttempts() int {
	if c.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return c.MaxAttempts
}
