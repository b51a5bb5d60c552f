// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mockgps drives a mock location provider: it checks that the
// device accepts simulated fixes, registers with the location service and
// keeps pushing the chosen coordinate until stopped.
package mockgps

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/fake_location/internal/geo"
)

// Config tunes a Machine. The zero value is usable.
type Config struct {
	// Interval between pushed fixes. Zero means DefaultInterval.
	Interval time.Duration
	// Clock drives the scheduler. Nil means SystemClock.
	Clock  Clock
	Logger zerolog.Logger
}

// Machine is the mock GPS state machine. It is the only writer of its
// State; everyone else observes it through Subscribe.
type Machine struct {
	gate     Gate
	sched    *Scheduler
	interval time.Duration
	log      zerolog.Logger

	// mu serializes every transition, including failures reported by the
	// scheduler goroutine.
	mu    sync.Mutex
	state State
	// gen identifies the current registration; failures from older runs
	// are dropped.
	gen uint64
	obs *registry
}

// NewMachine returns a Machine in the Idle state.
func NewMachine(gate Gate, cfg Config) *Machine {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	log := cfg.Logger.With().Str("component", "mockgps").Logger()
	initial := State{Kind: Idle}

	return &Machine{
		gate:     gate,
		sched:    NewScheduler(gate, cfg.Clock, cfg.Logger),
		interval: interval,
		log:      log,
		state:    initial,
		obs:      newRegistry(initial),
	}
}

// Start begins simulating target. From Idle or Failed it re-checks the
// allow-mock setting and registers from scratch; while On it only swaps
// the target. The returned error mirrors the Failed state, if any.
func (m *Machine) Start(target geo.Coordinate) error {
	if err := target.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Kind == On {
		m.sched.Start(target, m.interval, m.failureHandler(m.gen))
		m.setLocked(State{Kind: On, Target: target})
		return nil
	}

	if !m.gate.SupportEnabled() {
		m.setLocked(State{Kind: Failed, Reason: MockLocationsDisabled})
		return ErrMockLocationsDisabled
	}

	m.setLocked(State{Kind: Starting, Target: target})
	if err := m.gate.Register(); err != nil {
		m.gate.Unregister()
		m.setLocked(State{Kind: Failed, Reason: ReasonOf(err)})
		m.log.Warn().Err(err).Msg("provider registration failed")
		return err
	}

	m.gen++
	m.sched.Start(target, m.interval, m.failureHandler(m.gen))
	m.setLocked(State{Kind: On, Target: target})
	return nil
}

// Stop ends any simulation and returns to Idle. It is safe in any state.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	m.sched.Stop()
	m.gate.Unregister()
	if m.state.Kind != Idle {
		m.setLocked(State{Kind: Idle})
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SupportEnabled asks the gate whether mock locations are allowed right now.
func (m *Machine) SupportEnabled() bool {
	return m.gate.SupportEnabled()
}

// Subscribe registers fn for every state change. fn is first called with
// the current state, then with each later one in order, on a goroutine
// owned by the subscription.
func (m *Machine) Subscribe(fn func(State)) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.obs.subscribe(fn)
}

// Close stops the machine, waits for the scheduler goroutine and releases
// all subscriptions.
func (m *Machine) Close() {
	m.Stop()
	m.sched.Wait()
	m.obs.closeAll()
}

func (m *Machine) failureHandler(gen uint64) func(FailureReason) {
	return func(reason FailureReason) {
		m.mu.Lock()
		defer m.mu.Unlock()

		if gen != m.gen || m.state.Kind != On {
			m.log.Debug().Uint64("gen", gen).Msg("dropping failure from stale run")
			return
		}
		m.sched.Stop()
		m.gate.Unregister()
		m.setLocked(State{Kind: Failed, Reason: reason})
	}
}

func (m *Machine) setLocked(st State) {
	st.Seq = m.state.Seq + 1
	prev := m.state
	m.state = st
	m.obs.publish(st)

	ev := m.log.Info()
	if st.Kind == Failed {
		ev = m.log.Warn()
	}
	ev.Stringer("from", prev.Kind).Stringer("to", st.Kind).Uint64("seq", st.Seq)
	switch st.Kind {
	case Starting, On:
		ev = ev.Stringer("target", st.Target)
	case Failed:
		ev = ev.Stringer("reason", st.Reason)
	}
	ev.Msg("state changed")
}
