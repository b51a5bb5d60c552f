// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mockgps

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/fake_location/internal/geo"
)

var (
	seoul  = geo.Coordinate{Latitude: 37.5, Longitude: 127.0}
	busan  = geo.Coordinate{Latitude: 35.1, Longitude: 129.0}
	london = geo.Coordinate{Latitude: 51.5, Longitude: -0.12}
)

func newTestMachine(t *testing.T, gate Gate, clock Clock) *Machine {
	t.Helper()
	m := NewMachine(gate, Config{Interval: time.Second, Clock: clock})
	t.Cleanup(m.Close)
	return m
}

func TestMachine_InitialStateIsIdle(t *testing.T) {
	m := newTestMachine(t, newFakeGate(true), newManualClock())
	assert.Equal(t, Idle, m.State().Kind)
}

func TestMachine_StartRetargetBeforeFirstPush(t *testing.T) {
	gate := newFakeGate(true)
	clock := newManualClock()
	m := newTestMachine(t, gate, clock)

	require.NoError(t, m.Start(seoul))
	require.NoError(t, m.Start(busan))

	st := m.State()
	assert.Equal(t, On, st.Kind)
	assert.Equal(t, busan, st.Target)

	clock.tick(t)
	clock.tick(t)
	require.Eventually(t, func() bool { return gate.pushCount() == 2 }, time.Second, time.Millisecond)

	for _, p := range gate.snapshot() {
		assert.Equal(t, busan, p.c)
	}
	assert.Equal(t, 1, gate.registerCalls, "retarget must not re-register")
	assert.Equal(t, 1, clock.tickerCount(), "retarget keeps the same run")
}

func TestMachine_StopIsIdempotent(t *testing.T) {
	t.Run("from idle", func(t *testing.T) {
		gate := newFakeGate(true)
		m := newTestMachine(t, gate, newManualClock())

		m.Stop()
		m.Stop()
		assert.Equal(t, Idle, m.State().Kind)
		assert.False(t, m.sched.Running())
		assert.False(t, gate.isRegistered())
	})

	t.Run("from on", func(t *testing.T) {
		gate := newFakeGate(true)
		clock := newManualClock()
		m := newTestMachine(t, gate, clock)

		require.NoError(t, m.Start(seoul))
		clock.tick(t)
		require.Eventually(t, func() bool { return gate.pushCount() == 1 }, time.Second, time.Millisecond)

		m.Stop()
		m.Stop()
		assert.Equal(t, Idle, m.State().Kind)
		assert.False(t, m.sched.Running())
		assert.False(t, gate.isRegistered())

		m.sched.Wait()
		assert.Nil(t, clock.active(), "ticker must be stopped")
		assert.Equal(t, 1, gate.pushCount())
	})

	t.Run("from failed", func(t *testing.T) {
		gate := newFakeGate(false)
		m := newTestMachine(t, gate, newManualClock())

		require.ErrorIs(t, m.Start(seoul), ErrMockLocationsDisabled)
		require.Equal(t, Failed, m.State().Kind)

		m.Stop()
		m.Stop()
		assert.Equal(t, Idle, m.State().Kind)
		assert.False(t, m.sched.Running())
		assert.False(t, gate.isRegistered())
	})
}

func TestMachine_SupportDisabledNeverRegisters(t *testing.T) {
	gate := newFakeGate(false)
	m := newTestMachine(t, gate, newManualClock())

	err := m.Start(seoul)
	require.ErrorIs(t, err, ErrMockLocationsDisabled)

	st := m.State()
	assert.Equal(t, Failed, st.Kind)
	assert.Equal(t, MockLocationsDisabled, st.Reason)
	assert.Equal(t, 0, gate.registerCalls)
}

func TestMachine_TimestampsStrictlyIncrease(t *testing.T) {
	gate := newFakeGate(true)
	clock := newManualClock() // Now never moves
	m := newTestMachine(t, gate, clock)

	require.NoError(t, m.Start(seoul))
	for i := 0; i < 5; i++ {
		clock.tick(t)
	}
	require.Eventually(t, func() bool { return gate.pushCount() == 5 }, time.Second, time.Millisecond)

	pushes := gate.snapshot()
	for i := 1; i < len(pushes); i++ {
		assert.True(t, pushes[i].ts.After(pushes[i-1].ts), "push %d not after push %d", i, i-1)
	}
}

func TestMachine_PushesOnScheduleWithWallClock(t *testing.T) {
	if testing.Short() {
		t.Skip("takes 3.5s")
	}
	gate := newFakeGate(true)
	m := NewMachine(gate, Config{Interval: time.Second})
	defer m.Close()

	require.NoError(t, m.Start(seoul))
	time.Sleep(3500 * time.Millisecond)

	pushes := gate.snapshot()
	require.GreaterOrEqual(t, len(pushes), 3)
	for _, p := range pushes {
		assert.Equal(t, seoul, p.c)
	}
}

func TestMachine_DisabledStateSequence(t *testing.T) {
	gate := newFakeGate(false)
	m := newTestMachine(t, gate, newManualClock())

	rec := &stateRecorder{}
	sub := m.Subscribe(rec.record)
	defer sub.Release()

	_ = m.Start(london)

	require.Eventually(t, func() bool { return rec.len() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []Kind{Idle, Failed}, rec.kinds())
	assert.Equal(t, MockLocationsDisabled, rec.last().Reason)
	assert.Equal(t, 0, gate.pushCount())
}

func TestMachine_SecondPushFailure(t *testing.T) {
	gate := newFakeGate(true)
	gate.pushErrs[2] = fmt.Errorf("broker said no: %w", ErrRegistrationDenied)
	clock := newManualClock()
	m := newTestMachine(t, gate, clock)

	rec := &stateRecorder{}
	sub := m.Subscribe(rec.record)
	defer sub.Release()

	require.NoError(t, m.Start(seoul))
	clock.tick(t)
	clock.tick(t)

	require.Eventually(t, func() bool { return rec.last().Kind == Failed }, time.Second, time.Millisecond)
	assert.Equal(t, []Kind{Idle, Starting, On, Failed}, rec.kinds())
	assert.Equal(t, ProviderRegistrationDenied, rec.last().Reason)

	m.sched.Wait()
	assert.Nil(t, clock.active(), "no ticker may survive the failure")
	assert.Equal(t, 2, gate.pushCount())
	assert.False(t, gate.isRegistered())
	assert.Equal(t, Failed, m.State().Kind)
}

func TestMachine_RestartAfterFailureRechecksEverything(t *testing.T) {
	gate := newFakeGate(false)
	m := newTestMachine(t, gate, newManualClock())

	require.ErrorIs(t, m.Start(seoul), ErrMockLocationsDisabled)
	assert.Equal(t, 1, gate.supportCalls)
	assert.Equal(t, 0, gate.registerCalls)

	gate.setEnabled(true)
	gate.setRegisterErr(fmt.Errorf("no privilege: %w", ErrRegistrationDenied))
	err := m.Start(seoul)
	require.ErrorIs(t, err, ErrRegistrationDenied)
	assert.Equal(t, ProviderRegistrationDenied, m.State().Reason)
	assert.Equal(t, 2, gate.supportCalls)
	assert.Equal(t, 1, gate.registerCalls)

	gate.setRegisterErr(nil)
	require.NoError(t, m.Start(seoul))
	assert.Equal(t, On, m.State().Kind)
	assert.Equal(t, 3, gate.supportCalls)
	assert.Equal(t, 2, gate.registerCalls)
}

func TestMachine_RegisterUnknownError(t *testing.T) {
	gate := newFakeGate(true)
	gate.registerErr = fmt.Errorf("socket closed")
	m := newTestMachine(t, gate, newManualClock())

	rec := &stateRecorder{}
	sub := m.Subscribe(rec.record)
	defer sub.Release()

	require.Error(t, m.Start(seoul))
	require.Eventually(t, func() bool { return rec.len() == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []Kind{Idle, Starting, Failed}, rec.kinds())
	assert.Equal(t, Unknown, rec.last().Reason)
}

func TestMachine_InvalidCoordinateIsRejected(t *testing.T) {
	gate := newFakeGate(true)
	m := newTestMachine(t, gate, newManualClock())

	require.Error(t, m.Start(geo.Coordinate{Latitude: 91}))
	assert.Equal(t, Idle, m.State().Kind)
	assert.Equal(t, 0, gate.supportCalls)
}

func TestMachine_ConcurrentStartsSerialize(t *testing.T) {
	gate := newFakeGate(true)
	m := newTestMachine(t, gate, newManualClock())

	targets := []geo.Coordinate{seoul, busan, london}
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(c geo.Coordinate) {
			defer wg.Done()
			assert.NoError(t, m.Start(c))
		}(targets[i%len(targets)])
	}
	wg.Wait()

	st := m.State()
	assert.Equal(t, On, st.Kind)
	assert.Contains(t, targets, st.Target)
	assert.Equal(t, 1, gate.registerCalls)
}

func TestMachine_StopRacesWithFailure(t *testing.T) {
	gate := newFakeGate(true)
	gate.pushErrs[1] = fmt.Errorf("gone: %w", ErrRegistrationDenied)
	clock := newManualClock()
	m := newTestMachine(t, gate, clock)

	require.NoError(t, m.Start(seoul))
	clock.tick(t)
	m.Stop()
	m.sched.Wait()

	// whichever of the two landed first, Stop was last
	assert.Equal(t, Idle, m.State().Kind)
	assert.False(t, gate.isRegistered())
}

func TestMachine_SeqIncreases(t *testing.T) {
	gate := newFakeGate(true)
	m := newTestMachine(t, gate, newManualClock())

	s0 := m.State().Seq
	require.NoError(t, m.Start(seoul))
	s1 := m.State().Seq
	m.Stop()
	s2 := m.State().Seq

	assert.Equal(t, uint64(0), s0)
	assert.Greater(t, s1, s0)
	assert.Greater(t, s2, s1)
}
