// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/fake_location/internal/config"
	"github.com/relabs-tech/fake_location/internal/gps"
	"github.com/relabs-tech/fake_location/internal/location"
)

// consolePrinter formats broker messages as console lines.
type consolePrinter struct {
	out io.Writer
	log zerolog.Logger
	mu  sync.Mutex
}

func (p *consolePrinter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *consolePrinter) fixHandler(tag string) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			p.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("fix unmarshal error")
			return
		}

		p.printf(
			"[%s]  time=%s date=%s lat=%.6f lon=%.6f speed=%.1fkn course=%.1f° validity=%s%s\n",
			tag, f.Time, f.Date, f.Latitude, f.Longitude, f.SpeedKnots, f.CourseDeg, f.Validity, provenance(f),
		)
	}
}

func provenance(f gps.Fix) string {
	if !f.Mock {
		return ""
	}
	return fmt.Sprintf(" provider=%s session=%s", f.Provider, f.Session)
}

func (p *consolePrinter) handleClaim(_ mqtt.Client, msg mqtt.Message) {
	if len(msg.Payload()) == 0 {
		p.printf("[PROV]  no mock provider\n")
		return
	}
	var c location.ProviderClaim
	if err := json.Unmarshal(msg.Payload(), &c); err != nil {
		p.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("claim unmarshal error")
		return
	}
	p.printf("[PROV]  provider=%s session=%s since=%s\n", c.Provider, c.Session, c.Since.Format("2006-01-02T15:04:05Z07:00"))
}

// RunConsoleMQTT prints mock fixes, provider claims and real GPS fixes
// from the broker until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer, log zerolog.Logger) error {
	log = log.With().Str("component", "console").Logger()
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Info().Str("broker", cfg.MQTTBroker).Msg("connected to MQTT broker")
	defer client.Disconnect(250)

	p := &consolePrinter{out: out, log: log}
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{cfg.TopicMockProvider, p.handleClaim},
		{cfg.TopicMockFix, p.fixHandler("MOCK")},
		{cfg.TopicGPS, p.fixHandler("GPS ")},
	}
	for _, s := range subs {
		token := client.Subscribe(s.topic, 0, s.handler)
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", s.topic, token.Error())
		}
		log.Info().Str("topic", s.topic).Msg("subscribed")
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	return nil
}
