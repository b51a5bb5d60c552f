// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"fmt"
	"math"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/fake_location/internal/geo"
)

// Satellites reported in simulated GGA sentences.
const simulatedSatellites = 8

// EncodeRMC renders a stationary, valid $GPRMC sentence for c at ts,
// checksum and CRLF included.
func EncodeRMC(c geo.Coordinate, ts time.Time) string {
	ts = ts.UTC()
	lat, ns := nmeaAngle(c.Latitude, 2, "N", "S")
	lng, ew := nmeaAngle(c.Longitude, 3, "E", "W")
	body := fmt.Sprintf("GPRMC,%s,A,%s,%s,%s,%s,0.0,0.0,%s,,,A",
		nmeaTime(ts), lat, ns, lng, ew, ts.Format("020106"))
	return sentence(body)
}

// EncodeGGA renders a $GPGGA sentence with a GPS fix for c at ts.
func EncodeGGA(c geo.Coordinate, ts time.Time) string {
	ts = ts.UTC()
	lat, ns := nmeaAngle(c.Latitude, 2, "N", "S")
	lng, ew := nmeaAngle(c.Longitude, 3, "E", "W")
	body := fmt.Sprintf("GPGGA,%s,%s,%s,%s,%s,1,%02d,0.9,0.0,M,0.0,M,,",
		nmeaTime(ts), lat, ns, lng, ew, simulatedSatellites)
	return sentence(body)
}

// Validate parses a sentence produced by the encoders above. It exists so
// gates never write something a receiver-side parser would reject.
func Validate(s string) error {
	if len(s) >= 2 && s[len(s)-2:] == "\r\n" {
		s = s[:len(s)-2]
	}
	_, err := nmea.Parse(s)
	return err
}

func sentence(body string) string {
	return "$" + body + "*" + nmea.Checksum(body) + "\r\n"
}

func nmeaTime(ts time.Time) string {
	return fmt.Sprintf("%02d%02d%02d.%03d", ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond()/int(time.Millisecond))
}

// nmeaAngle formats decimal degrees as (d)ddmm.mmmm plus hemisphere.
func nmeaAngle(v float64, degDigits int, pos, neg string) (string, string) {
	hemi := pos
	if v < 0 {
		hemi = neg
		v = -v
	}
	deg := math.Floor(v)
	minutes := (v - deg) * 60
	// rounding can push minutes to 60.0000
	if math.Round(minutes*1e4)/1e4 >= 60 {
		deg++
		minutes = 0
	}
	return fmt.Sprintf("%0*d%07.4f", degDigits, int(deg), minutes), hemi
}
