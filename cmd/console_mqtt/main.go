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
		kong.Description("Print mock fixes, provider claims and GPS fixes from the MQTT broker."),
		kong.UsageOnError())

	// Load configuration
	if err := config.InitGlobal(cli.Config); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg := config.Get()
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	logger.Info().Msg("starting fake_location console (MQTT subscriber)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsoleMQTT(ctx, cfg, os.Stdout, logger); err != nil {
		logger.Fatal().Err(err).Msg("fatal")
	}
}
