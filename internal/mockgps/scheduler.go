// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mockgps

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/fake_location/internal/geo"
)

// DefaultInterval is the push period used when none is configured.
const DefaultInterval = time.Second

// Scheduler pushes one target coordinate through a Gate on a fixed period.
// At most one run is active at a time.
type Scheduler struct {
	gate  Gate
	clock Clock
	log   zerolog.Logger

	mu  sync.Mutex
	cur *run
	wg  sync.WaitGroup
}

type run struct {
	target    geo.Coordinate
	interval  time.Duration
	onFailure func(FailureReason)
	stamper   Stamper
	pushes    int

	// stopped and quit are guarded by Scheduler.mu.
	stopped bool
	quit    chan struct{}
}

// NewScheduler creates a stopped scheduler. A nil clock means SystemClock.
func NewScheduler(gate Gate, clock Clock, log zerolog.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{
		gate:  gate,
		clock: clock,
		log:   log.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins pushing target every interval. If a run with the same
// interval is active its target is replaced in place: once Start returns,
// every push that has not already been dispatched uses the new target.
// onFailure is called at most once per run, from the scheduler goroutine,
// after the run has stopped itself.
func (s *Scheduler) Start(target geo.Coordinate, interval time.Duration, onFailure func(FailureReason)) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r := s.cur; r != nil && r.interval == interval {
		r.target = target
		r.onFailure = onFailure
		s.log.Debug().Stringer("target", target).Msg("target replaced")
		return
	}

	s.stopLocked()
	r := &run{
		target:    target,
		interval:  interval,
		onFailure: onFailure,
		quit:      make(chan struct{}),
	}
	s.cur = r
	s.wg.Add(1)
	go s.loop(r)
	s.log.Debug().Stringer("target", target).Dur("interval", interval).Msg("run started")
}

// Stop halts the active run, if any. It does not wait for a push that is
// already in flight, but no push is dispatched after it returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	r := s.cur
	if r == nil {
		return
	}
	r.stopped = true
	close(r.quit)
	s.cur = nil
	s.log.Debug().Int("pushes", r.pushes).Msg("run stopped")
}

// Running reports whether a run is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil
}

// Wait blocks until every run goroutine has exited. Call Stop first.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(r *run) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.quit:
			return

		case <-ticker.C():
			s.mu.Lock()
			if r.stopped {
				s.mu.Unlock()
				return
			}
			target := r.target
			r.pushes++
			s.mu.Unlock()

			err := s.push(r, target)
			if err == nil {
				continue
			}

			s.mu.Lock()
			if r.stopped {
				// stopped while the push was in flight; the failure is moot
				s.mu.Unlock()
				return
			}
			r.stopped = true
			close(r.quit)
			if s.cur == r {
				s.cur = nil
			}
			onFailure := r.onFailure
			s.mu.Unlock()

			reason := ReasonOf(err)
			s.log.Warn().Err(err).Stringer("reason", reason).Stringer("target", target).Msg("push failed, run stopped")
			if onFailure != nil {
				onFailure(reason)
			}
			return
		}
	}
}

func (s *Scheduler) push(r *run, target geo.Coordinate) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("push panicked: %v", p)
		}
	}()

	ts := r.stamper.Next(s.clock.Now())
	if err := s.gate.PushFix(target, ts); err != nil {
		return err
	}
	s.log.Debug().Stringer("target", target).Time("ts", ts).Msg("fix pushed")
	return nil
}
