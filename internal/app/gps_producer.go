// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/fake_location/internal/config"
	"github.com/relabs-tech/fake_location/internal/gps"
	"github.com/relabs-tech/fake_location/internal/lastknown"
)

// fixPublisher publishes every RMC fix as retained JSON, so a late
// subscriber still gets the last known position.
func fixPublisher(client mqtt.Client, topic string, log zerolog.Logger) func(gps.Fix) {
	return func(f gps.Fix) {
		payload, err := json.Marshal(f)
		if err != nil {
			log.Warn().Err(err).Msg("GPS JSON marshal error")
			return
		}

		token := client.Publish(topic, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			log.Warn().Err(token.Error()).Msg("GPS publish error")
			return
		}
		log.Debug().Float64("lat", f.Latitude).Float64("lng", f.Longitude).Str("validity", f.Validity).Msg("published GPS fix")
	}
}

// RunGPSProducer opens the real GPS serial port, parses NMEA sentences
// and publishes the fixes to TOPIC_GPS.
func RunGPSProducer(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	log = log.With().Str("component", "gps-producer").Logger()

	// ---- 1) Connect to MQTT broker ----
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDGPS)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Info().Str("broker", cfg.MQTTBroker).Msg("connected to MQTT broker")

	// ---- 2) Open GPS serial port ----
	serialOpts := serial.OpenOptions{
		PortName:              cfg.GPSSerialPort,
		BaudRate:              uint(cfg.GPSBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Info().Str("port", serialOpts.PortName).Uint("baud", serialOpts.BaudRate).Msg("GPS serial port opened")

	// closing the port unblocks the reader
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	reader := lastknown.NewNMEAReader(log)
	reader.OnFix = fixPublisher(client, cfg.TopicGPS, log)
	if err := reader.Run(ctx, port); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("GPS read error")
		return err
	}
	return nil
}
