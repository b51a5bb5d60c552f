// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/fake_location/internal/geo"
	"github.com/relabs-tech/fake_location/internal/location"
	"github.com/relabs-tech/fake_location/internal/mockgps"
)

// switchSetting is an allow-mock setting the test flips.
type switchSetting struct{ on atomic.Bool }

func newSwitchSetting(on bool) *switchSetting {
	s := &switchSetting{}
	s.on.Store(on)
	return s
}

func (s *switchSetting) Enabled() bool { return s.on.Load() }

// newTestMachine returns a machine over a memory gate that never pushes
// during the test unless interval says so.
func newTestMachine(t *testing.T, setting location.Setting, interval time.Duration) (*mockgps.Machine, *location.MemoryGate) {
	t.Helper()
	gate := location.NewMemoryGate(setting, "test")
	m := mockgps.NewMachine(gate, mockgps.Config{Interval: interval, Logger: zerolog.Nop()})
	t.Cleanup(m.Close)
	return m, gate
}

type cameraMove struct {
	c    geo.Coordinate
	zoom float64
}

// fakeSurface records what the controller asks of the map and the UI.
type fakeSurface struct {
	ready chan struct{}

	mu         sync.Mutex
	center     geo.Coordinate
	haveCenter bool
	permission Permission
	requests   int
	cameras    []cameraMove
	markers    []geo.Coordinate
	controls   map[string]bool
	toasts     []string
	prompts    []mockgps.FailureReason
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{ready: make(chan struct{}), controls: map[string]bool{}}
}

func (s *fakeSurface) Ready() <-chan struct{} { return s.ready }

func (s *fakeSurface) Center() (geo.Coordinate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.center, s.haveCenter
}

func (s *fakeSurface) setCenter(c geo.Coordinate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.center, s.haveCenter = c, true
}

func (s *fakeSurface) MoveCamera(c geo.Coordinate, zoom float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameras = append(s.cameras, cameraMove{c, zoom})
}

func (s *fakeSurface) ReplaceMarker(c geo.Coordinate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers = append(s.markers, c)
}

func (s *fakeSurface) setControl(name string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls[name] = on
}

func (s *fakeSurface) SetMyLocationEnabled(on bool)   { s.setControl("my_location", on) }
func (s *fakeSurface) SetCompassEnabled(on bool)      { s.setControl("compass", on) }
func (s *fakeSurface) SetZoomControlsEnabled(on bool) { s.setControl("zoom", on) }
func (s *fakeSurface) SetPlayEnabled(on bool)         { s.setControl("play", on) }

func (s *fakeSurface) Permission() Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

func (s *fakeSurface) Request() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
}

func (s *fakeSurface) Toast(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toasts = append(s.toasts, msg)
}

func (s *fakeSurface) ShowRecoveryPrompt(reason mockgps.FailureReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, reason)
}

func (s *fakeSurface) promptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func (s *fakeSurface) toastList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.toasts...)
}

func (s *fakeSurface) control(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controls[name]
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// doneToken is an mqtt.Token that has already completed.
type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	retained bool
	payload  []byte
}

// publishClient records publishes. Anything else panics on the nil
// embedded interface.
type publishClient struct {
	mqtt.Client

	mu       sync.Mutex
	err      error
	messages []published
}

func (c *publishClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return doneToken{err: c.err}
	}
	c.messages = append(c.messages, published{topic: topic, retained: retained, payload: bytes.Clone(payload.([]byte))})
	return doneToken{}
}

// fakeMessage is an mqtt.Message carrying only a topic and payload.
type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }
