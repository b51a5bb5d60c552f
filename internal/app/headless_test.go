// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/fake_location/internal/config"
	"github.com/relabs-tech/fake_location/internal/geo"
	"github.com/relabs-tech/fake_location/internal/mockgps"
)

func runHeadless(t *testing.T, cfg *config.Config, target geo.Coordinate, out *syncBuffer) (cancel func()) {
	t.Helper()
	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunFakeLocation(ctx, cfg, target, out, zerolog.Nop()) }()
	return func() {
		cancelCtx()
		require.NoError(t, <-done)
	}
}

func TestRunFakeLocation(t *testing.T) {
	var out syncBuffer
	stop := runHeadless(t, testConfig(config.GateMemory), seoul, &out)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "[GPS ] on(37.500000,127.000000)")
	}, waitFor, tick)
	stop()

	assert.Contains(t, out.String(), "[MAP ] marker 37.500000,127.000000")
	assert.Contains(t, out.String(), "[GPS ] idle")
}

func TestRunFakeLocation_RejectsInvalidTarget(t *testing.T) {
	var out syncBuffer
	err := RunFakeLocation(context.Background(), testConfig(config.GateMemory), geo.Coordinate{Longitude: 200}, &out, zerolog.Nop())
	assert.Error(t, err)
}

func TestRunFakeLocation_RecoversWhenSettingEnabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "developer_settings.txt")
	require.NoError(t, os.WriteFile(path, []byte("ALLOW_MOCK_LOCATIONS=false\n"), 0o644))

	cfg := testConfig(config.GateMemory)
	cfg.MockSettingFile = path

	var out syncBuffer
	stop := runHeadless(t, cfg, seoul, &out)
	defer stop()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "[FAIL] mock locations are disabled")
	}, waitFor, tick)

	require.NoError(t, os.WriteFile(path, []byte("ALLOW_MOCK_LOCATIONS=true\n"), 0o644))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "[GPS ] on(37.500000,127.000000)")
	}, waitFor, tick)
}

func TestConsoleSurface_PromptNamesReason(t *testing.T) {
	var out syncBuffer
	s := newConsoleSurface(&out, seoul)

	s.ShowRecoveryPrompt(mockgps.MockLocationsDisabled)
	s.ShowRecoveryPrompt(mockgps.Unknown)

	assert.Contains(t, out.String(), "[FAIL] mock locations are disabled")
	assert.Contains(t, out.String(), "[FAIL] mock location stopped unexpectedly (unknown)")
}
