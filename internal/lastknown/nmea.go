// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package lastknown

import (
	"bufio"
	"context"
	"io"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/fake_location/internal/gps"
)

// NMEAReader follows a stream of NMEA sentences from a GPS receiver and
// remembers the last valid RMC position.
type NMEAReader struct {
	holder
	log zerolog.Logger

	// OnFix, if set, is called with every parsed RMC fix, valid or not.
	OnFix func(gps.Fix)
}

// NewNMEAReader returns a reader with no position yet.
func NewNMEAReader(log zerolog.Logger) *NMEAReader {
	return &NMEAReader{log: log.With().Str("component", "nmea-reader").Logger()}
}

// Run reads r line by line until it fails, hits EOF or ctx is done.
// EOF returns nil.
func (n *NMEAReader) Run(ctx context.Context, r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := reader.ReadString('\n')
		if line != "" {
			n.handle(line)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (n *NMEAReader) handle(line string) {
	line = strings.TrimSpace(line)

	// NMEA sentences usually start with '$'
	if !strings.HasPrefix(line, "$") {
		return
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		// noisy GPS or partial sentences
		n.log.Debug().Err(err).Str("line", line).Msg("NMEA parse error")
		return
	}

	// other sentence types (GGA, GSA, ...) are ignored for now
	if sentence.DataType() != nmea.TypeRMC {
		return
	}
	fix := gps.FixFromRMC(sentence.(nmea.RMC))
	if fix.Valid() {
		n.set(fix.Coordinate())
	}
	if n.OnFix != nil {
		n.OnFix(fix)
	}
}
