// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/fake_location/internal/config"
	"github.com/relabs-tech/fake_location/internal/geo"
	"github.com/relabs-tech/fake_location/internal/metrics"
	"github.com/relabs-tech/fake_location/internal/mockgps"
)

// consoleSurface is a map pinned to one coordinate, printing what a real
// map would show.
type consoleSurface struct {
	out    io.Writer
	target geo.Coordinate
	ready  chan struct{}

	mu sync.Mutex
}

func newConsoleSurface(out io.Writer, target geo.Coordinate) *consoleSurface {
	ready := make(chan struct{})
	close(ready)
	return &consoleSurface{
		out:    out,
		target: target,
		ready:  ready,
	}
}

func (s *consoleSurface) Ready() <-chan struct{}         { return s.ready }
func (s *consoleSurface) Center() (geo.Coordinate, bool) { return s.target, true }

func (s *consoleSurface) MoveCamera(c geo.Coordinate, zoom float64) {
	s.printf("[MAP ] camera %s zoom=%.0f\n", c, zoom)
}

func (s *consoleSurface) ReplaceMarker(c geo.Coordinate) {
	s.printf("[MAP ] marker %s\n", c)
}

func (s *consoleSurface) SetMyLocationEnabled(bool)   {}
func (s *consoleSurface) SetCompassEnabled(bool)      {}
func (s *consoleSurface) SetZoomControlsEnabled(bool) {}
func (s *consoleSurface) SetPlayEnabled(bool)         {}

// A console has no location permission to ask for.
func (s *consoleSurface) Permission() Permission { return PermissionDenied }
func (s *consoleSurface) Request()               {}

func (s *consoleSurface) Toast(msg string) {
	s.printf("[INFO] %s\n", msg)
}

func (s *consoleSurface) ShowRecoveryPrompt(reason mockgps.FailureReason) {
	switch reason {
	case mockgps.MockLocationsDisabled:
		s.printf("[FAIL] mock locations are disabled: set ALLOW_MOCK_LOCATIONS=true in the developer settings\n")
	case mockgps.ProviderRegistrationDenied:
		s.printf("[FAIL] mock provider registration denied: is another provider running?\n")
	default:
		s.printf("[FAIL] mock location stopped unexpectedly (%s): check the location service and restart\n", reason)
	}
}

func (s *consoleSurface) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *consoleSurface) ObserveState(st mockgps.State) {
	s.printf("[GPS ] %s\n", st)
}

// RunFakeLocation simulates target without a map until ctx is done. When
// the allow-mock setting is a watched file, a failed start is retried
// each time the file changes.
func RunFakeLocation(ctx context.Context, cfg *config.Config, target geo.Coordinate, out io.Writer, log zerolog.Logger) error {
	if err := target.Validate(); err != nil {
		return err
	}

	collector, err := metrics.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	provider, err := NewProvider(cfg, log)
	if err != nil {
		return err
	}
	defer provider.Close()

	machine := mockgps.NewMachine(collector.InstrumentGate(provider.Gate), mockgps.Config{
		Interval: cfg.PushInterval(),
		Logger:   log,
	})
	defer machine.Close()
	defer machine.Subscribe(collector.ObserveState).Release()

	surface := newConsoleSurface(out, target)
	defer machine.Subscribe(surface.ObserveState).Release()
	ctrl := NewController(ControllerConfig{
		Machine:     machine,
		Surface:     surface,
		Permissions: surface,
		Notifier:    surface,
		Zoom:        cfg.MapInitialZoom,
		Logger:      log,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go ctrl.Run(ctx)

	if err := ctrl.Play(); err != nil {
		log.Warn().Err(err).Msg("start failed")
	}

	for {
		select {
		case <-ctx.Done():
			ctrl.Stop()
			return nil

		case <-provider.SettingChanged:
			if machine.State().Kind != mockgps.Failed || !machine.SupportEnabled() {
				// still off, or nothing to recover
				ctrl.Resume()
				continue
			}
			ctrl.PromptDismissed()
			if err := ctrl.Play(); err != nil {
				log.Warn().Err(err).Msg("restart failed")
			}
		}
	}
}
