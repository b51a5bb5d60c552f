// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/fake_location/internal/geo"
)

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
// Real receiver fixes leave Mock, Provider and Session empty.
type Fix struct {
	Time       string  `json:"time"`        // e.g. "12:34:56.000"
	Date       string  `json:"date"`        // e.g. "06/12/25"
	Latitude   float64 `json:"lat"`         // decimal degrees
	Longitude  float64 `json:"lon"`         // decimal degrees
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Validity   string  `json:"validity"`    // "A" (valid) / "V" (void)

	Timestamp time.Time `json:"timestamp"`
	Mock      bool      `json:"mock,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Session   string    `json:"session,omitempty"`
}

// Coordinate returns the fix position.
func (f Fix) Coordinate() geo.Coordinate {
	return geo.Coordinate{Latitude: f.Latitude, Longitude: f.Longitude}
}

// Valid reports whether the receiver flagged the fix as usable.
func (f Fix) Valid() bool {
	return f.Validity == nmea.ValidRMC
}

// FixFromRMC fills a Fix from a parsed RMC sentence.
func FixFromRMC(m nmea.RMC) Fix {
	return Fix{
		Time:       m.Time.String(),
		Date:       m.Date.String(),
		Latitude:   m.Latitude,
		Longitude:  m.Longitude,
		SpeedKnots: m.Speed,
		CourseDeg:  m.Course,
		Validity:   m.Validity,
	}
}

// MockFix builds the fix a mock provider reports for c at ts: stationary,
// valid, UTC.
func MockFix(c geo.Coordinate, ts time.Time, provider, session string) Fix {
	ts = ts.UTC()
	return Fix{
		Time:      ts.Format("15:04:05.000"),
		Date:      ts.Format("02/01/06"),
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		Validity:  nmea.ValidRMC,
		Timestamp: ts,
		Mock:      true,
		Provider:  provider,
		Session:   session,
	}
}
