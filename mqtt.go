// mqtt.go

// This file contains the MQTT bridge for the telemetry feed.

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
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttConnectRetryInterval = 5 * time.Second

// TelemetryPublisher republishes a driver's telemetry table to an MQTT
// broker topic as periodic JSON snapshots.
type TelemetryPublisher struct {
	drone  *Tello
	client mqtt.Client
	topic  string
}

// NewTelemetryPublisher connects to the broker (e.g. "tcp://host:1883")
// and returns a publisher for the given topic. The client auto-reconnects
// if the broker connection is lost.
func NewTelemetryPublisher(drone *Tello, brokerURL, clientID, topic string) (*TelemetryPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(mqttConnectRetryInterval)
	opts.OnConnect = func(mqtt.Client) {
		drone.log.WithField("broker", brokerURL).Info("Connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		drone.log.WithError(err).Warn("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &TelemetryPublisher{drone: drone, client: client, topic: topic}, nil
}

// Run publishes a snapshot every period and blocks until the drone is
// disconnected. Call it from its own goroutine if the caller has flying
// to do meanwhile.
func (p *TelemetryPublisher) Run(period time.Duration) error {
	stream, err := p.drone.StreamTelemetry(period)
	if err != nil {
		return err
	}
	for snapshot := range stream {
		data, err := json.Marshal(snapshot)
		if err != nil {
			p.drone.log.WithError(err).Error("Could not marshal telemetry snapshot")
			continue
		}
		p.client.Publish(p.topic, 0, false, data)
	}
	return nil
}

// Close disconnects from the broker, allowing a moment for in-flight
// publishes to complete.
func (p *TelemetryPublisher) Close() {
	p.client.Disconnect(250)
}
