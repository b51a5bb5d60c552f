// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/fake_location/internal/config"
	"github.com/relabs-tech/fake_location/internal/gps"
	"github.com/relabs-tech/fake_location/internal/location"
	"github.com/relabs-tech/fake_location/internal/mockgps"
)

// Provider is the configured location service connection.
type Provider struct {
	Gate mockgps.Gate
	// SettingChanged fires when the allow-mock setting file changes. Nil
	// for a static setting.
	SettingChanged <-chan struct{}

	closers []func()
}

// Close releases the gate and the setting watcher.
func (p *Provider) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
	p.closers = nil
}

// NewProvider builds the gate selected by MOCK_GATE.
func NewProvider(cfg *config.Config, log zerolog.Logger) (*Provider, error) {
	p := &Provider{}

	var setting location.Setting
	if cfg.MockSettingFile != "" {
		fs, err := location.NewFileSetting(cfg.MockSettingFile, log)
		if err != nil {
			return nil, fmt.Errorf("mock setting: %w", err)
		}
		setting = fs
		p.SettingChanged = fs.Changed()
		p.closers = append(p.closers, fs.Close)
	} else {
		setting = location.StaticSetting(cfg.AllowMockLocations)
	}

	switch cfg.MockGate {
	case config.GateMQTT:
		opts := mqtt.NewClientOptions().
			AddBroker(cfg.MQTTBroker).
			SetClientID(cfg.MQTTClientIDProvider).
			SetAutoReconnect(true)
		client := mqtt.NewClient(opts)
		p.Gate = location.NewMQTTGate(client, setting, location.MQTTConfig{
			ProviderID:    cfg.MQTTClientIDProvider,
			FixTopic:      cfg.TopicMockFix,
			ProviderTopic: cfg.TopicMockProvider,
		}, log)
		p.closers = append(p.closers, func() {
			if client.IsConnected() {
				client.Disconnect(250)
			}
		})

	case config.GateSerial:
		p.Gate = location.NewSerialGate(setting, location.SerialConfig{
			PortName: cfg.MockSerialPort,
			BaudRate: cfg.MockBaudRate,
		}, nil, log)

	case config.GateMemory:
		g := location.NewMemoryGate(setting, "memory")
		glog := log.With().Str("component", "memory-gate").Logger()
		g.OnPush(func(f gps.Fix) {
			glog.Debug().Float64("lat", f.Latitude).Float64("lng", f.Longitude).Str("time", f.Time).Msg("fix")
		})
		p.Gate = g

	default:
		p.Close()
		return nil, fmt.Errorf("unknown MOCK_GATE %q", cfg.MockGate)
	}

	// the machine unregisters on Stop; this covers exits that skip it
	p.closers = append(p.closers, p.Gate.Unregister)
	return p, nil
}
