// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package lastknown tracks the device's last real position, used to
// center the map before the user picks a point.
package lastknown

import (
	"sync"

	"github.com/relabs-tech/fake_location/internal/geo"
)

// Source is anything that can report the last known position.
type Source interface {
	Last() (geo.Coordinate, bool)
}

// Static always reports the same coordinate.
type Static geo.Coordinate

func (s Static) Last() (geo.Coordinate, bool) { return geo.Coordinate(s), true }

// None never has a position.
type None struct{}

func (None) Last() (geo.Coordinate, bool) { return geo.Coordinate{}, false }

// holder is the shared "latest value wins" store behind the sources.
type holder struct {
	mu   sync.RWMutex
	last geo.Coordinate
	have bool
}

func (h *holder) set(c geo.Coordinate) {
	h.mu.Lock()
	h.last = c
	h.have = true
	h.mu.Unlock()
}

func (h *holder) Last() (geo.Coordinate, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last, h.have
}
