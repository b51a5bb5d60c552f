// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mockgps

import (
	"sync"
	"time"
)

// DefaultStampStep is how far a Stamper moves a timestamp forward when the
// proposed one is not after the previous one.
const DefaultStampStep = time.Millisecond

// Stamper hands out strictly increasing timestamps. The zero value is
// ready to use.
type Stamper struct {
	Step time.Duration

	mu   sync.Mutex
	last time.Time
}

// Next returns ts, or the previous stamp plus Step if ts is not after it.
func (s *Stamper) Next(ts time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.Step
	if step <= 0 {
		step = DefaultStampStep
	}
	if !s.last.IsZero() && !ts.After(s.last) {
		ts = s.last.Add(step)
	}
	s.last = ts
	return ts
}
