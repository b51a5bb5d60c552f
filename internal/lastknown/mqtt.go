// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package lastknown

import (
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/fake_location/internal/gps"
)

// MQTTSource keeps the last valid fix published by the GPS producer.
type MQTTSource struct {
	holder
	log zerolog.Logger
}

// NewMQTTSource returns a source with no position yet. Subscribe it with
// client.Subscribe(topic, 0, src.Handle).
func NewMQTTSource(log zerolog.Logger) *MQTTSource {
	return &MQTTSource{log: log.With().Str("component", "lastknown").Logger()}
}

// Handle is an mqtt.MessageHandler for gps.Fix payloads.
func (s *MQTTSource) Handle(_ mqtt.Client, msg mqtt.Message) {
	var f gps.Fix
	if err := json.Unmarshal(msg.Payload(), &f); err != nil {
		s.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("gps fix unmarshal error")
		return
	}
	// never center on our own simulated position
	if f.Mock || !f.Valid() {
		return
	}
	s.set(f.Coordinate())
}
