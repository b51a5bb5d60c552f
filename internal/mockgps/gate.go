// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mockgps

import (
	"time"

	"github.com/relabs-tech/fake_location/internal/geo"
)

// Gate is everything the machine needs from the location service.
// Implementations live in internal/location.
type Gate interface {
	// SupportEnabled reports whether the allow-mock-locations setting is on.
	// It must not block and must not have side effects.
	SupportEnabled() bool

	// Register installs this process as the active provider. Calling it
	// while registered is a no-op.
	Register() error

	// PushFix submits one simulated fix. Successive fixes carry strictly
	// increasing timestamps even if ts does not increase.
	PushFix(c geo.Coordinate, ts time.Time) error

	// Unregister tears the registration down. It is a no-op when not
	// registered.
	Unregister()
}
