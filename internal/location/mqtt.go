// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/fake_location/internal/geo"
	"github.com/relabs-tech/fake_location/internal/gps"
	"github.com/relabs-tech/fake_location/internal/mockgps"
)

var errTokenTimeout = errors.New("mqtt: timed out waiting for broker")

// ProviderClaim is the retained message announcing the active mock
// provider. An empty retained payload means no provider.
type ProviderClaim struct {
	Provider string    `json:"provider"`
	Session  string    `json:"session"`
	Since    time.Time `json:"since"`
}

// MQTTConfig names the topics an MQTTGate publishes on.
type MQTTConfig struct {
	ProviderID    string
	FixTopic      string
	ProviderTopic string
	// Timeout bounds every wait on the broker. Zero means 5s.
	Timeout time.Duration
}

// MQTTGate uses an MQTT broker as the location service: registering
// publishes a retained provider claim, each fix is a retained JSON gps.Fix.
type MQTTGate struct {
	client  mqtt.Client
	setting Setting
	cfg     MQTTConfig
	log     zerolog.Logger

	mu         sync.Mutex
	registered bool
	session    string
	stamper    mockgps.Stamper
}

// NewMQTTGate wraps client. The client may be disconnected; Register
// connects it.
func NewMQTTGate(client mqtt.Client, setting Setting, cfg MQTTConfig, log zerolog.Logger) *MQTTGate {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &MQTTGate{
		client:  client,
		setting: setting,
		cfg:     cfg,
		log:     log.With().Str("component", "mqtt-gate").Str("provider", cfg.ProviderID).Logger(),
	}
}

func (g *MQTTGate) SupportEnabled() bool { return g.setting.Enabled() }

func (g *MQTTGate) Register() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.registered {
		return nil
	}
	if !g.setting.Enabled() {
		return mockgps.ErrMockLocationsDisabled
	}
	if err := acquireClaim(g); err != nil {
		return err
	}

	if !g.client.IsConnected() {
		if err := g.wait(g.client.Connect()); err != nil {
			releaseClaim(g)
			return fmt.Errorf("%w: connect: %v", mockgps.ErrRegistrationDenied, err)
		}
		g.log.Info().Msg("connected to MQTT broker")
	}

	claim := ProviderClaim{
		Provider: g.cfg.ProviderID,
		Session:  uuid.NewString(),
		Since:    time.Now().UTC(),
	}
	payload, err := json.Marshal(claim)
	if err != nil {
		releaseClaim(g)
		return err
	}
	if err := g.wait(g.client.Publish(g.cfg.ProviderTopic, 1, true, payload)); err != nil {
		releaseClaim(g)
		return fmt.Errorf("%w: publish claim: %v", mockgps.ErrRegistrationDenied, err)
	}

	g.registered = true
	g.session = claim.Session
	g.log.Info().Str("session", claim.Session).Str("topic", g.cfg.ProviderTopic).Msg("registered as mock provider")
	return nil
}

func (g *MQTTGate) PushFix(c geo.Coordinate, ts time.Time) error {
	g.mu.Lock()
	if !g.registered {
		g.mu.Unlock()
		return fmt.Errorf("%w: not registered", mockgps.ErrRegistrationDenied)
	}
	if !g.setting.Enabled() {
		g.mu.Unlock()
		return mockgps.ErrMockLocationsDisabled
	}
	fix := gps.MockFix(c, g.stamper.Next(ts), g.cfg.ProviderID, g.session)
	g.mu.Unlock()

	payload, err := json.Marshal(fix)
	if err != nil {
		return fmt.Errorf("marshal fix: %w", err)
	}
	if err := g.wait(g.client.Publish(g.cfg.FixTopic, 0, true, payload)); err != nil {
		return fmt.Errorf("publish fix: %w", err)
	}
	return nil
}

func (g *MQTTGate) Unregister() {
	g.mu.Lock()
	if !g.registered {
		g.mu.Unlock()
		return
	}
	g.registered = false
	session := g.session
	g.session = ""
	releaseClaim(g)
	g.mu.Unlock()

	// empty retained payload clears the claim on the broker
	if err := g.wait(g.client.Publish(g.cfg.ProviderTopic, 1, true, []byte{})); err != nil {
		g.log.Warn().Err(err).Str("session", session).Msg("failed to clear provider claim")
		return
	}
	g.log.Info().Str("session", session).Msg("unregistered mock provider")
}

func (g *MQTTGate) wait(tok mqtt.Token) error {
	if !tok.WaitTimeout(g.cfg.Timeout) {
		return errTokenTimeout
	}
	return tok.Error()
}
