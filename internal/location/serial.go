// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"fmt"
	"io"
	"sync"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/fake_location/internal/geo"
	"github.com/relabs-tech/fake_location/internal/gps"
	"github.com/relabs-tech/fake_location/internal/mockgps"
)

// PortOpener opens a serial port. serial.Open in production.
type PortOpener func(serial.OpenOptions) (io.ReadWriteCloser, error)

// SerialConfig selects the port the simulated receiver talks on.
type SerialConfig struct {
	PortName string
	BaudRate int
}

// SerialGate plays a GPS receiver: while registered it holds the serial
// port open and writes an RMC+GGA sentence pair per fix.
type SerialGate struct {
	setting Setting
	cfg     SerialConfig
	open    PortOpener
	log     zerolog.Logger

	mu      sync.Mutex
	port    io.ReadWriteCloser
	stamper mockgps.Stamper
}

// NewSerialGate returns an unregistered gate. A nil open means serial.Open.
func NewSerialGate(setting Setting, cfg SerialConfig, open PortOpener, log zerolog.Logger) *SerialGate {
	if open == nil {
		open = serial.Open
	}
	return &SerialGate{
		setting: setting,
		cfg:     cfg,
		open:    open,
		log:     log.With().Str("component", "serial-gate").Str("port", cfg.PortName).Logger(),
	}
}

func (g *SerialGate) SupportEnabled() bool { return g.setting.Enabled() }

func (g *SerialGate) Register() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.port != nil {
		return nil
	}
	if !g.setting.Enabled() {
		return mockgps.ErrMockLocationsDisabled
	}
	if err := acquireClaim(g); err != nil {
		return err
	}

	opts := serial.OpenOptions{
		PortName:              g.cfg.PortName,
		BaudRate:              uint(g.cfg.BaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := g.open(opts)
	if err != nil {
		releaseClaim(g)
		return fmt.Errorf("%w: open %s: %v", mockgps.ErrRegistrationDenied, g.cfg.PortName, err)
	}
	g.port = port
	g.log.Info().Int("baud", g.cfg.BaudRate).Msg("serial port opened for NMEA output")
	return nil
}

func (g *SerialGate) PushFix(c geo.Coordinate, ts time.Time) error {
	g.mu.Lock()
	port := g.port
	if port == nil {
		g.mu.Unlock()
		return fmt.Errorf("%w: not registered", mockgps.ErrRegistrationDenied)
	}
	if !g.setting.Enabled() {
		g.mu.Unlock()
		return mockgps.ErrMockLocationsDisabled
	}
	ts = g.stamper.Next(ts)
	g.mu.Unlock()

	rmc := gps.EncodeRMC(c, ts)
	gga := gps.EncodeGGA(c, ts)
	if err := gps.Validate(rmc); err != nil {
		return fmt.Errorf("encode RMC: %w", err)
	}
	if _, err := io.WriteString(port, rmc+gga); err != nil {
		return fmt.Errorf("write NMEA: %w", err)
	}
	return nil
}

func (g *SerialGate) Unregister() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.port == nil {
		return
	}
	if err := g.port.Close(); err != nil {
		g.log.Warn().Err(err).Msg("closing serial port")
	}
	g.port = nil
	releaseClaim(g)
	g.log.Info().Msg("serial port closed")
}
