// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/fake_location/internal/geo"
	"github.com/relabs-tech/fake_location/internal/lastknown"
	"github.com/relabs-tech/fake_location/internal/mockgps"
)

// MapSurface is the map the user picks a coordinate on.
type MapSurface interface {
	// Ready is closed once the map can take commands.
	Ready() <-chan struct{}
	// Center is the coordinate currently under the map center. ok is
	// false until the map has reported one.
	Center() (c geo.Coordinate, ok bool)
	MoveCamera(c geo.Coordinate, zoom float64)
	// ReplaceMarker removes the previous center marker, if any, and drops
	// a new one at c.
	ReplaceMarker(c geo.Coordinate)
	SetMyLocationEnabled(enabled bool)
	SetCompassEnabled(enabled bool)
	SetZoomControlsEnabled(enabled bool)
	SetPlayEnabled(enabled bool)
}

// Permission is the answer of the location permission oracle.
type Permission int

const (
	PermissionUnknown Permission = iota
	PermissionGranted
	PermissionDenied
	// PermissionAskAgain means the user declined but may be asked again
	// after seeing a rationale.
	PermissionAskAgain
	PermissionDeniedPermanently
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	case PermissionAskAgain:
		return "ask_again"
	case PermissionDeniedPermanently:
		return "denied_permanently"
	default:
		return "unknown"
	}
}

// ParsePermission maps the wire name back to a Permission.
func ParsePermission(s string) Permission {
	for _, p := range []Permission{PermissionGranted, PermissionDenied, PermissionAskAgain, PermissionDeniedPermanently} {
		if p.String() == s {
			return p
		}
	}
	return PermissionUnknown
}

// PermissionOracle answers whether the real device location may be shown.
// Request asks the user; the answer comes back through
// Controller.PermissionResult.
type PermissionOracle interface {
	Permission() Permission
	Request()
}

// Notifier presents messages to the user.
type Notifier interface {
	Toast(msg string)
	// ShowRecoveryPrompt shows the blocking dialog sending the user to the
	// developer settings. The surface calls Controller.PromptDismissed
	// when it goes away.
	ShowRecoveryPrompt(reason mockgps.FailureReason)
}

// ErrNoMapCenter is returned by Play before the map reported its center.
var ErrNoMapCenter = errors.New("map center not known yet")

// Toast texts.
const (
	msgPermissionGranted     = "Location permission granted"
	msgPermissionDenied      = "Location permission denied"
	msgPermissionRationale   = "Location permission is needed to show where you are"
	msgPermissionPermanently = "Location permission permanently denied, enable it in the app settings"
)

// ControllerConfig wires a Controller to its collaborators.
type ControllerConfig struct {
	Machine     *mockgps.Machine
	Surface     MapSurface
	Permissions PermissionOracle
	Notifier    Notifier
	LastKnown   lastknown.Source
	Zoom        float64
	Logger      zerolog.Logger
}

// Controller connects the map to the mock GPS machine and turns failures
// into the recovery prompt.
type Controller struct {
	machine *mockgps.Machine
	surface MapSurface
	perms   PermissionOracle
	ui      Notifier
	last    lastknown.Source
	zoom    float64
	log     zerolog.Logger

	mu sync.Mutex
	// handledSeq is the Seq of the last Failed state acted upon.
	handledSeq uint64
	prompting  bool
}

// NewController returns a Controller. Run starts it.
func NewController(cfg ControllerConfig) *Controller {
	last := cfg.LastKnown
	if last == nil {
		last = lastknown.None{}
	}
	return &Controller{
		machine: cfg.Machine,
		surface: cfg.Surface,
		perms:   cfg.Permissions,
		ui:      cfg.Notifier,
		last:    last,
		zoom:    cfg.Zoom,
		log:     cfg.Logger.With().Str("component", "controller").Logger(),
	}
}

// Run follows the machine state and sets the map up once it is ready.
// It returns when ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	sub := c.machine.Subscribe(c.handleState)
	defer sub.Release()

	select {
	case <-ctx.Done():
		return nil
	case <-c.surface.Ready():
	}
	c.mapReady()

	<-ctx.Done()
	return nil
}

func (c *Controller) mapReady() {
	if c.perms.Permission() == PermissionGranted {
		c.surface.SetMyLocationEnabled(true)
		c.centerOnLastKnown()
	} else {
		c.perms.Request()
	}
	c.surface.SetCompassEnabled(true)
	c.surface.SetZoomControlsEnabled(true)
	c.surface.SetPlayEnabled(true)
	c.log.Info().Msg("map ready")
}

func (c *Controller) centerOnLastKnown() {
	pos, ok := c.last.Last()
	if !ok {
		c.log.Debug().Msg("no last known position")
		return
	}
	c.surface.MoveCamera(pos, c.zoom)
}

// Play simulates the coordinate under the map center.
func (c *Controller) Play() error {
	center, ok := c.surface.Center()
	if !ok {
		return ErrNoMapCenter
	}
	return c.PlayAt(center)
}

// PlayAt marks target on the map and simulates it.
func (c *Controller) PlayAt(target geo.Coordinate) error {
	if err := target.Validate(); err != nil {
		return err
	}
	c.surface.ReplaceMarker(target)
	c.log.Info().Stringer("target", target).Msg("play")
	return c.machine.Start(target)
}

// Stop ends the simulation.
func (c *Controller) Stop() {
	c.machine.Stop()
}

// Resume is called when the map becomes visible again. If mock locations
// were turned off meanwhile the user is sent to the settings.
func (c *Controller) Resume() {
	if c.machine.SupportEnabled() {
		return
	}
	c.log.Info().Msg("mock locations disabled on resume")
	c.prompt(mockgps.MockLocationsDisabled)
}

// PermissionResult handles the user's answer to a permission request.
func (c *Controller) PermissionResult(p Permission) {
	c.log.Info().Stringer("permission", p).Msg("permission result")
	switch p {
	case PermissionGranted:
		c.ui.Toast(msgPermissionGranted)
		c.surface.SetMyLocationEnabled(true)
		c.centerOnLastKnown()
	case PermissionDenied:
		c.ui.Toast(msgPermissionDenied)
	case PermissionAskAgain:
		c.ui.Toast(msgPermissionRationale)
	case PermissionDeniedPermanently:
		c.ui.Toast(msgPermissionPermanently)
	}
}

// PromptDismissed allows the recovery prompt to be shown again.
func (c *Controller) PromptDismissed() {
	c.mu.Lock()
	c.prompting = false
	c.mu.Unlock()
}

func (c *Controller) handleState(st mockgps.State) {
	if st.Kind != mockgps.Failed {
		return
	}

	c.mu.Lock()
	if st.Seq <= c.handledSeq {
		c.mu.Unlock()
		return
	}
	c.handledSeq = st.Seq
	c.mu.Unlock()

	if st.Reason == mockgps.Unknown {
		c.log.Error().Stringer("state", st).Msg("mock location failed")
	}
	c.prompt(st.Reason)
}

func (c *Controller) prompt(reason mockgps.FailureReason) {
	c.mu.Lock()
	if c.prompting {
		c.mu.Unlock()
		return
	}
	c.prompting = true
	c.mu.Unlock()

	c.ui.ShowRecoveryPrompt(reason)
}
