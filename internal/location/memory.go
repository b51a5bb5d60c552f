// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"fmt"
	"sync"
	"time"

	"github.com/relabs-tech/fake_location/internal/geo"
	"github.com/relabs-tech/fake_location/internal/gps"
	"github.com/relabs-tech/fake_location/internal/mockgps"
)

// MemoryGate keeps pushed fixes in memory. It backs dry runs
// (MOCK_GATE=memory) and stands in for a location service in tests.
type MemoryGate struct {
	setting Setting
	name    string

	mu          sync.Mutex
	registered  bool
	registerErr error
	pushErr     error
	fixes       []gps.Fix
	stamper     mockgps.Stamper
	onPush      func(gps.Fix)
}

// NewMemoryGate returns an unregistered gate reading setting.
func NewMemoryGate(setting Setting, name string) *MemoryGate {
	return &MemoryGate{setting: setting, name: name}
}

func (g *MemoryGate) SupportEnabled() bool { return g.setting.Enabled() }

func (g *MemoryGate) Register() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.registered {
		return nil
	}
	if !g.setting.Enabled() {
		return mockgps.ErrMockLocationsDisabled
	}
	if g.registerErr != nil {
		return g.registerErr
	}
	if err := acquireClaim(g); err != nil {
		return err
	}
	g.registered = true
	return nil
}

func (g *MemoryGate) PushFix(c geo.Coordinate, ts time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.registered {
		return fmt.Errorf("%w: not registered", mockgps.ErrRegistrationDenied)
	}
	if !g.setting.Enabled() {
		return mockgps.ErrMockLocationsDisabled
	}
	if g.pushErr != nil {
		return g.pushErr
	}
	fix := gps.MockFix(c, g.stamper.Next(ts), g.name, "")
	g.fixes = append(g.fixes, fix)
	if g.onPush != nil {
		g.onPush(fix)
	}
	return nil
}

func (g *MemoryGate) Unregister() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.registered {
		return
	}
	g.registered = false
	releaseClaim(g)
}

// Registered reports whether Register succeeded and Unregister has not run since.
func (g *MemoryGate) Registered() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.registered
}

// Fixes returns a copy of every fix pushed so far.
func (g *MemoryGate) Fixes() []gps.Fix {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gps.Fix(nil), g.fixes...)
}

// OnPush installs a hook called with each accepted fix, under the gate lock.
func (g *MemoryGate) OnPush(fn func(gps.Fix)) {
	g.mu.Lock()
	g.onPush = fn
	g.mu.Unlock()
}

// FailRegister makes the next registrations fail with err (nil to clear).
func (g *MemoryGate) FailRegister(err error) {
	g.mu.Lock()
	g.registerErr = err
	g.mu.Unlock()
}

// FailPush makes pushes fail with err (nil to clear).
func (g *MemoryGate) FailPush(err error) {
	g.mu.Lock()
	g.pushErr = err
	g.mu.Unlock()
}
