// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/fake_location/internal/app"
	"github.com/relabs-tech/fake_location/internal/config"
	"github.com/relabs-tech/fake_location/internal/logging"
)

var cli struct {
	Config string `help:"path to the KEY=VALUE config file" default:"fakelocation_config.txt" type:"path"`
}

func main() {
	kong.Parse(&cli,
		kong.Description("Publish the real GPS receiver's fixes (NMEA → MQTT)."),
		kong.UsageOnError())

	// Load configuration
	if err := config.InitGlobal(cli.Config); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg := config.Get()
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	logger.Info().Str("port", cfg.GPSSerialPort).Msg("starting fake_location GPS producer (NMEA → MQTT)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunGPSProducer(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("fatal")
	}
}
