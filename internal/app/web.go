// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/fake_location/internal/config"
	"github.com/relabs-tech/fake_location/internal/geo"
	"github.com/relabs-tech/fake_location/internal/lastknown"
	"github.com/relabs-tech/fake_location/internal/metrics"
	"github.com/relabs-tech/fake_location/internal/mockgps"
)

// StateResponse is the body of every /api reply.
type StateResponse struct {
	State          mockgps.State `json:"state"`
	SupportEnabled bool          `json:"support_enabled"`
	Error          string        `json:"error,omitempty"`
}

type startRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// WebServer serves the map page, its websocket and the JSON API.
type WebServer struct {
	machine  *mockgps.Machine
	ctrl     *Controller
	surface  *WebSurface
	gatherer prometheus.Gatherer
	static   string
	log      zerolog.Logger
}

// WebServerConfig wires a WebServer.
type WebServerConfig struct {
	Machine    *mockgps.Machine
	Controller *Controller
	Surface    *WebSurface
	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
	// StaticDir is served at /. Empty disables it.
	StaticDir string
	Logger    zerolog.Logger
}

// NewWebServer returns a server; Router gives its handler.
func NewWebServer(cfg WebServerConfig) *WebServer {
	g := cfg.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return &WebServer{
		machine:  cfg.Machine,
		ctrl:     cfg.Controller,
		surface:  cfg.Surface,
		gatherer: g,
		static:   cfg.StaticDir,
		log:      cfg.Logger.With().Str("component", "web").Logger(),
	}
}

// Router returns the HTTP routes.
func (s *WebServer) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)

	r.HandleFunc("/ws", s.surface.HandleWS)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// Static files from ./web as the root
	if s.static != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.static)))
	}
	return r
}

func (s *WebServer) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeState(w, http.StatusOK, nil)
}

func (s *WebServer) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var err error
	switch {
	case req.Lat == nil && req.Lng == nil:
		err = s.ctrl.Play()
	case req.Lat == nil || req.Lng == nil:
		http.Error(w, "lat and lng must be given together", http.StatusBadRequest)
		return
	default:
		target, cerr := geo.NewCoordinate(*req.Lat, *req.Lng)
		if cerr != nil {
			http.Error(w, cerr.Error(), http.StatusBadRequest)
			return
		}
		err = s.ctrl.PlayAt(target)
	}

	if errors.Is(err, ErrNoMapCenter) {
		http.Error(w, "no coordinate given and the map has not reported its center", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.log.Info().Err(err).Msg("start failed")
		s.writeState(w, http.StatusConflict, err)
		return
	}
	s.writeState(w, http.StatusOK, nil)
}

func (s *WebServer) handleStop(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Stop()
	s.writeState(w, http.StatusOK, nil)
}

func (s *WebServer) writeState(w http.ResponseWriter, status int, err error) {
	resp := StateResponse{
		State:          s.machine.State(),
		SupportEnabled: s.machine.SupportEnabled(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn().Err(err).Msg("json encode error")
	}
}

// RunWeb serves the map UI until ctx is done.
func RunWeb(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	collector, err := metrics.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	provider, err := NewProvider(cfg, log)
	if err != nil {
		return err
	}
	defer provider.Close()

	machine := mockgps.NewMachine(collector.InstrumentGate(provider.Gate), mockgps.Config{
		Interval: cfg.PushInterval(),
		Logger:   log,
	})
	defer machine.Close()
	defer machine.Subscribe(collector.ObserveState).Release()

	last, stopLast := subscribeLastKnown(cfg, log)
	defer stopLast()

	surface := NewWebSurface(log)
	defer machine.Subscribe(surface.ObserveState).Release()

	ctrl := NewController(ControllerConfig{
		Machine:     machine,
		Surface:     surface,
		Permissions: surface,
		Notifier:    surface,
		LastKnown:   last,
		Zoom:        cfg.MapInitialZoom,
		Logger:      log,
	})
	surface.Bind(ctrl)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go ctrl.Run(ctx)
	go followSetting(ctx, provider.SettingChanged, ctrl)

	srv := NewWebServer(WebServerConfig{
		Machine:    machine,
		Controller: ctrl,
		Surface:    surface,
		StaticDir:  "web",
		Logger:     log,
	})
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("web server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	log.Info().Msg("web server shutting down")
	return httpSrv.Shutdown(shutdownCtx)
}

// subscribeLastKnown follows the real GPS fixes on TOPIC_GPS. Without a
// broker the map simply is not centered.
func subscribeLastKnown(cfg *config.Config, log zerolog.Logger) (lastknown.Source, func()) {
	src := lastknown.NewMQTTSource(log)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Warn().Err(token.Error()).Str("broker", cfg.MQTTBroker).Msg("last known position unavailable")
		return src, func() {}
	}
	if !client.IsConnected() {
		log.Warn().Str("broker", cfg.MQTTBroker).Msg("last known position unavailable: broker not reachable")
		return src, func() {}
	}

	token := client.Subscribe(cfg.TopicGPS, 0, src.Handle)
	token.Wait()
	if token.Error() != nil {
		log.Warn().Err(token.Error()).Str("topic", cfg.TopicGPS).Msg("last known position unavailable")
	} else {
		log.Info().Str("topic", cfg.TopicGPS).Msg("subscribed to GPS fixes")
	}
	return src, func() { client.Disconnect(250) }
}

// followSetting re-checks the allow-mock setting whenever its file
// changes, as if the user came back from the settings screen.
func followSetting(ctx context.Context, changed <-chan struct{}, ctrl *Controller) {
	if changed == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			ctrl.Resume()
		}
	}
}
