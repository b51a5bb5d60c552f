// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Mock gate backends.
const (
	GateMQTT   = "mqtt"
	GateSerial = "serial"
	GateMemory = "memory"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProvider string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDGPS      string

	// Topics
	TopicMockFix      string
	TopicMockProvider string
	TopicGPS          string

	// Real GPS receiver
	GPSSerialPort string
	GPSBaudRate   int

	// Mock provider
	MockGate           string // "mqtt", "serial" or "memory"
	MockSerialPort     string
	MockBaudRate       int
	MockSettingFile    string // developer settings file; empty means AllowMockLocations
	AllowMockLocations bool
	PushIntervalMS     int

	// Web Server
	WebServerPort  int
	MapInitialZoom float64

	// Logging
	LogLevel  string
	LogFormat string
}

// PushInterval returns PushIntervalMS as a duration.
func (c *Config) PushInterval() time.Duration {
	return time.Duration(c.PushIntervalMS) * time.Millisecond
}

// Package-level singleton: InitGlobal sets it once, Get reads it.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("MQTT_BROKER", "tcp://localhost:1883")
	v.SetDefault("MQTT_CLIENT_ID_PROVIDER", "fakelocation-provider")
	v.SetDefault("MQTT_CLIENT_ID_CONSOLE", "fakelocation-console")
	v.SetDefault("MQTT_CLIENT_ID_WEB", "fakelocation-web")
	v.SetDefault("MQTT_CLIENT_ID_GPS", "fakelocation-gps-producer")

	v.SetDefault("TOPIC_MOCK_FIX", "fakelocation/mock/fix")
	v.SetDefault("TOPIC_MOCK_PROVIDER", "fakelocation/mock/provider")
	v.SetDefault("TOPIC_GPS", "fakelocation/gps")

	v.SetDefault("GPS_SERIAL_PORT", "/dev/serial0")
	v.SetDefault("GPS_BAUD_RATE", 9600)

	v.SetDefault("MOCK_GATE", GateMQTT)
	v.SetDefault("MOCK_SERIAL_PORT", "/dev/ttyUSB0")
	v.SetDefault("MOCK_BAUD_RATE", 9600)
	v.SetDefault("MOCK_SETTING_FILE", "")
	v.SetDefault("ALLOW_MOCK_LOCATIONS", false)
	v.SetDefault("PUSH_INTERVAL_MS", 1000)

	v.SetDefault("WEB_SERVER_PORT", 8080)
	v.SetDefault("MAP_INITIAL_ZOOM", 15)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// Load reads the KEY=VALUE configuration file and returns a Config.
// Keys not present in the file take their defaults; environment
// variables with the same names override both.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	for _, k := range v.AllKeys() {
		if !v.InConfig(k) {
			continue
		}
		if !isKnownKey(k) {
			return nil, fmt.Errorf("unknown config key: %q", strings.ToUpper(k))
		}
	}

	cfg := &Config{
		MQTTBroker:           v.GetString("MQTT_BROKER"),
		MQTTClientIDProvider: v.GetString("MQTT_CLIENT_ID_PROVIDER"),
		MQTTClientIDConsole:  v.GetString("MQTT_CLIENT_ID_CONSOLE"),
		MQTTClientIDWeb:      v.GetString("MQTT_CLIENT_ID_WEB"),
		MQTTClientIDGPS:      v.GetString("MQTT_CLIENT_ID_GPS"),

		TopicMockFix:      v.GetString("TOPIC_MOCK_FIX"),
		TopicMockProvider: v.GetString("TOPIC_MOCK_PROVIDER"),
		TopicGPS:          v.GetString("TOPIC_GPS"),

		GPSSerialPort: v.GetString("GPS_SERIAL_PORT"),
		GPSBaudRate:   v.GetInt("GPS_BAUD_RATE"),

		MockGate:           strings.ToLower(v.GetString("MOCK_GATE")),
		MockSerialPort:     v.GetString("MOCK_SERIAL_PORT"),
		MockBaudRate:       v.GetInt("MOCK_BAUD_RATE"),
		MockSettingFile:    v.GetString("MOCK_SETTING_FILE"),
		AllowMockLocations: v.GetBool("ALLOW_MOCK_LOCATIONS"),
		PushIntervalMS:     v.GetInt("PUSH_INTERVAL_MS"),

		WebServerPort:  v.GetInt("WEB_SERVER_PORT"),
		MapInitialZoom: v.GetFloat64("MAP_INITIAL_ZOOM"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var knownKeys = []string{
	"MQTT_BROKER", "MQTT_CLIENT_ID_PROVIDER", "MQTT_CLIENT_ID_CONSOLE", "MQTT_CLIENT_ID_WEB", "MQTT_CLIENT_ID_GPS",
	"TOPIC_MOCK_FIX", "TOPIC_MOCK_PROVIDER", "TOPIC_GPS",
	"GPS_SERIAL_PORT", "GPS_BAUD_RATE",
	"MOCK_GATE", "MOCK_SERIAL_PORT", "MOCK_BAUD_RATE", "MOCK_SETTING_FILE", "ALLOW_MOCK_LOCATIONS", "PUSH_INTERVAL_MS",
	"WEB_SERVER_PORT", "MAP_INITIAL_ZOOM",
	"LOG_LEVEL", "LOG_FORMAT",
}

func isKnownKey(k string) bool {
	for _, known := range knownKeys {
		if strings.EqualFold(k, known) {
			return true
		}
	}
	return false
}

// validate checks that all required fields are set and in range.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	switch c.MockGate {
	case GateMQTT:
		if c.TopicMockFix == "" || c.TopicMockProvider == "" {
			return fmt.Errorf("TOPIC_MOCK_FIX and TOPIC_MOCK_PROVIDER are required for MOCK_GATE=mqtt")
		}
	case GateSerial:
		if c.MockSerialPort == "" {
			return fmt.Errorf("MOCK_SERIAL_PORT is required for MOCK_GATE=serial")
		}
		if c.MockBaudRate <= 0 {
			return fmt.Errorf("MOCK_BAUD_RATE must be positive, got %d", c.MockBaudRate)
		}
	case GateMemory:
	default:
		return fmt.Errorf("MOCK_GATE must be mqtt, serial or memory, got %q", c.MockGate)
	}
	if c.PushIntervalMS <= 0 {
		return fmt.Errorf("PUSH_INTERVAL_MS must be positive, got %d", c.PushIntervalMS)
	}
	if c.GPSBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE must be positive, got %d", c.GPSBaudRate)
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", c.WebServerPort)
	}
	if c.MapInitialZoom < 0 || c.MapInitialZoom > 22 {
		return fmt.Errorf("MAP_INITIAL_ZOOM must be 0-22, got %v", c.MapInitialZoom)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
