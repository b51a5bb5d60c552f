// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mockgps

import (
	"fmt"

	"github.com/relabs-tech/fake_location/internal/geo"
)

// Kind identifies which variant a State is.
type Kind int

const (
	// Idle means no simulation is running. It is the initial state.
	Idle Kind = iota
	// Starting means provider registration is in progress for Target.
	Starting
	// On means fixes for Target are being pushed on the schedule.
	On
	// Failed means registration or a scheduled push failed; Reason says why.
	Failed
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case On:
		return "on"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FailureReason classifies why the machine entered Failed.
type FailureReason int

const (
	ReasonNone FailureReason = iota
	// MockLocationsDisabled: the allow-mock-locations setting is off.
	MockLocationsDisabled
	// ProviderRegistrationDenied: the location service refused the provider.
	ProviderRegistrationDenied
	// Unknown covers everything else.
	Unknown
)

func (r FailureReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case MockLocationsDisabled:
		return "mock_locations_disabled"
	case ProviderRegistrationDenied:
		return "provider_registration_denied"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// State is one snapshot of the machine. Target is meaningful for Starting
// and On, Reason for Failed. Seq increases by one on every transition.
type State struct {
	Kind   Kind           `json:"kind"`
	Target geo.Coordinate `json:"target"`
	Reason FailureReason  `json:"reason"`
	Seq    uint64         `json:"seq"`
}

func (s State) String() string {
	switch s.Kind {
	case Starting, On:
		return fmt.Sprintf("%s(%s)#%d", s.Kind, s.Target, s.Seq)
	case Failed:
		return fmt.Sprintf("%s(%s)#%d", s.Kind, s.Reason, s.Seq)
	default:
		return fmt.Sprintf("%s#%d", s.Kind, s.Seq)
	}
}

// MarshalText lets Kind travel as a string in JSON payloads.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// MarshalText lets FailureReason travel as a string in JSON payloads.
func (r FailureReason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	for _, v := range []Kind{Idle, Starting, On, Failed} {
		if v.String() == string(b) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown state kind %q", b)
}

func (r *FailureReason) UnmarshalText(b []byte) error {
	for _, v := range []FailureReason{ReasonNone, MockLocationsDisabled, ProviderRegistrationDenied, Unknown} {
		if v.String() == string(b) {
			*r = v
			return nil
		}
	}
	return fmt.Errorf("unknown failure reason %q", b)
}
