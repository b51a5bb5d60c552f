// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mockgps

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/fake_location/internal/geo"
)

type pushed struct {
	c  geo.Coordinate
	ts time.Time
}

// fakeGate records every call. pushErrs maps a 1-based push number to the
// error that push returns.
type fakeGate struct {
	mu              sync.Mutex
	enabled         bool
	registerErr     error
	pushErrs        map[int]error
	pushPanic       bool
	registered      bool
	supportCalls    int
	registerCalls   int
	unregisterCalls int
	pushes          []pushed
}

func newFakeGate(enabled bool) *fakeGate {
	return &fakeGate{enabled: enabled, pushErrs: map[int]error{}}
}

func (g *fakeGate) SupportEnabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.supportCalls++
	return g.enabled
}

func (g *fakeGate) Register() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.registerCalls++
	if g.registerErr != nil {
		return g.registerErr
	}
	g.registered = true
	return nil
}

func (g *fakeGate) PushFix(c geo.Coordinate, ts time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pushPanic {
		panic("boom")
	}
	g.pushes = append(g.pushes, pushed{c: c, ts: ts})
	return g.pushErrs[len(g.pushes)]
}

func (g *fakeGate) Unregister() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unregisterCalls++
	g.registered = false
}

func (g *fakeGate) setEnabled(v bool) {
	g.mu.Lock()
	g.enabled = v
	g.mu.Unlock()
}

func (g *fakeGate) setRegisterErr(err error) {
	g.mu.Lock()
	g.registerErr = err
	g.mu.Unlock()
}

func (g *fakeGate) snapshot() []pushed {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]pushed(nil), g.pushes...)
}

func (g *fakeGate) pushCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pushes)
}

func (g *fakeGate) isRegistered() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.registered
}

// manualClock hands out tickers that only fire when the test says so.
// Now stays put unless advanced, which exercises the stamper.
type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

type manualTicker struct {
	c       chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *manualTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{c: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *manualClock) active() *manualTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.tickers) - 1; i >= 0; i-- {
		if !c.tickers[i].isStopped() {
			return c.tickers[i]
		}
	}
	return nil
}

func (c *manualClock) tickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// tick fires the live ticker once and waits until the run goroutine has
// taken the tick.
func (c *manualClock) tick(t *testing.T) {
	t.Helper()
	var tk *manualTicker
	require.Eventually(t, func() bool {
		tk = c.active()
		return tk != nil
	}, time.Second, time.Millisecond, "no live ticker")

	select {
	case tk.c <- c.Now():
	case <-time.After(time.Second):
		t.Fatal("run goroutine did not take the tick")
	}
}

// stateRecorder collects states delivered to a subscription.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(st State) {
	r.mu.Lock()
	r.states = append(r.states, st)
	r.mu.Unlock()
}

func (r *stateRecorder) kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, 0, len(r.states))
	for _, st := range r.states {
		out = append(out, st.Kind)
	}
	return out
}

func (r *stateRecorder) last() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return State{}
	}
	return r.states[len(r.states)-1]
}

func (r *stateRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}
