// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mockgps

import "errors"

var (
	// ErrMockLocationsDisabled is returned (possibly wrapped) by gates when
	// the device does not accept simulated fixes.
	ErrMockLocationsDisabled = errors.New("mock locations are disabled")

	// ErrRegistrationDenied is returned (possibly wrapped) by gates when the
	// location service refuses this process as a provider.
	ErrRegistrationDenied = errors.New("provider registration denied")
)

// ReasonOf maps a gate error to the FailureReason the machine reports.
// A nil error maps to ReasonNone.
func ReasonOf(err error) FailureReason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrMockLocationsDisabled):
		return MockLocationsDisabled
	case errors.Is(err, ErrRegistrationDenied):
		return ProviderRegistrationDenied
	default:
		return Unknown
	}
}
