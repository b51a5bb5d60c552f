// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/fake_location/internal/geo"
	"github.com/relabs-tech/fake_location/internal/mockgps"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const wsWriteTimeout = 5 * time.Second

// WSMessage is sent by the browser.
type WSMessage struct {
	Action     string  `json:"action"` // ready, center, play, stop, resume, permission, prompt_dismissed
	Lat        float64 `json:"lat,omitempty"`
	Lng        float64 `json:"lng,omitempty"`
	Permission string  `json:"permission,omitempty"`
}

// WSResponse is sent to the browser.
type WSResponse struct {
	Type    string          `json:"type"` // state, camera, marker, control, toast, prompt, request_permission, error
	State   *mockgps.State  `json:"state,omitempty"`
	Coord   *geo.Coordinate `json:"coord,omitempty"`
	Zoom    float64         `json:"zoom,omitempty"`
	Control string          `json:"control,omitempty"` // my_location, compass, zoom, play
	Enabled bool            `json:"enabled"`
	Message string          `json:"message,omitempty"`
	Reason  string          `json:"reason,omitempty"`
}

// Actions receives the user's commands from the browser. Controller
// implements it.
type Actions interface {
	Play() error
	Stop()
	Resume()
	PermissionResult(p Permission)
	PromptDismissed()
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(resp WSResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(resp)
}

// WebSurface is the map in the browser, reached over websockets. Every
// connected page shows the same map; the first page to load it makes it
// ready. It is also the permission oracle and the notifier for the page.
type WebSurface struct {
	log zerolog.Logger

	readyOnce sync.Once
	ready     chan struct{}

	mu         sync.Mutex
	clients    map[*wsClient]bool
	actions    Actions
	center     geo.Coordinate
	haveCenter bool
	permission Permission
	// view is replayed to pages connecting later
	camera   *WSResponse
	marker   *WSResponse
	controls map[string]WSResponse
	state    *WSResponse
	// prompt stays pending until a page dismisses it
	prompt *WSResponse
}

// NewWebSurface returns a surface with no page connected.
func NewWebSurface(log zerolog.Logger) *WebSurface {
	return &WebSurface{
		log:      log.With().Str("component", "web-surface").Logger(),
		ready:    make(chan struct{}),
		clients:  make(map[*wsClient]bool),
		controls: make(map[string]WSResponse),
	}
}

// Bind routes browser commands to a.
func (s *WebSurface) Bind(a Actions) {
	s.mu.Lock()
	s.actions = a
	s.mu.Unlock()
}

func (s *WebSurface) Ready() <-chan struct{} { return s.ready }

func (s *WebSurface) Center() (geo.Coordinate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.center, s.haveCenter
}

func (s *WebSurface) MoveCamera(c geo.Coordinate, zoom float64) {
	resp := WSResponse{Type: "camera", Coord: &c, Zoom: zoom}
	s.mu.Lock()
	s.center = c
	s.haveCenter = true
	s.camera = &resp
	s.mu.Unlock()
	s.broadcast(resp)
}

func (s *WebSurface) ReplaceMarker(c geo.Coordinate) {
	resp := WSResponse{Type: "marker", Coord: &c}
	s.mu.Lock()
	s.marker = &resp
	s.mu.Unlock()
	s.broadcast(resp)
}

func (s *WebSurface) SetMyLocationEnabled(enabled bool)   { s.setControl("my_location", enabled) }
func (s *WebSurface) SetCompassEnabled(enabled bool)      { s.setControl("compass", enabled) }
func (s *WebSurface) SetZoomControlsEnabled(enabled bool) { s.setControl("zoom", enabled) }
func (s *WebSurface) SetPlayEnabled(enabled bool)         { s.setControl("play", enabled) }

func (s *WebSurface) setControl(name string, enabled bool) {
	resp := WSResponse{Type: "control", Control: name, Enabled: enabled}
	s.mu.Lock()
	s.controls[name] = resp
	s.mu.Unlock()
	s.broadcast(resp)
}

// Permission is the last answer reported by a page.
func (s *WebSurface) Permission() Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

func (s *WebSurface) Request() {
	s.broadcast(WSResponse{Type: "request_permission"})
}

func (s *WebSurface) Toast(msg string) {
	s.broadcast(WSResponse{Type: "toast", Message: msg})
}

// ShowRecoveryPrompt shows the prompt on every page, including pages
// connecting before one of them dismisses it.
func (s *WebSurface) ShowRecoveryPrompt(reason mockgps.FailureReason) {
	resp := WSResponse{Type: "prompt", Reason: reason.String()}
	s.mu.Lock()
	s.prompt = &resp
	s.mu.Unlock()
	s.broadcast(resp)
}

// ObserveState forwards machine states to the pages. Pass it to
// Machine.Subscribe.
func (s *WebSurface) ObserveState(st mockgps.State) {
	resp := WSResponse{Type: "state", State: &st}
	s.mu.Lock()
	s.state = &resp
	s.mu.Unlock()
	s.broadcast(resp)
}

// HandleWS serves one browser page.
func (s *WebSurface) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}
	client := &wsClient{conn: conn}

	s.mu.Lock()
	s.clients[client] = true
	replay := s.snapshotLocked()
	n := len(s.clients)
	s.mu.Unlock()
	s.log.Info().Int("clients", n).Msg("websocket client connected")

	defer func() {
		s.mu.Lock()
		delete(s.clients, client)
		n := len(s.clients)
		s.mu.Unlock()
		conn.Close()
		s.log.Info().Int("clients", n).Msg("websocket client disconnected")
	}()

	for _, resp := range replay {
		if err := client.send(resp); err != nil {
			return
		}
	}

	// Main message loop
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		s.dispatch(client, msg)
	}
}

func (s *WebSurface) snapshotLocked() []WSResponse {
	var out []WSResponse
	if s.state != nil {
		out = append(out, *s.state)
	}
	if s.camera != nil {
		out = append(out, *s.camera)
	}
	if s.marker != nil {
		out = append(out, *s.marker)
	}
	for _, name := range []string{"my_location", "compass", "zoom", "play"} {
		if resp, ok := s.controls[name]; ok {
			out = append(out, resp)
		}
	}
	if s.prompt != nil {
		out = append(out, *s.prompt)
	}
	return out
}

func (s *WebSurface) dispatch(client *wsClient, msg WSMessage) {
	s.mu.Lock()
	actions := s.actions
	s.mu.Unlock()

	switch msg.Action {
	case "ready":
		s.readyOnce.Do(func() { close(s.ready) })

	case "center":
		c, err := geo.NewCoordinate(msg.Lat, msg.Lng)
		if err != nil {
			s.log.Debug().Err(err).Msg("ignoring invalid map center")
			return
		}
		s.mu.Lock()
		s.center = c
		s.haveCenter = true
		s.mu.Unlock()

	case "permission":
		p := ParsePermission(msg.Permission)
		s.mu.Lock()
		s.permission = p
		s.mu.Unlock()
		if actions != nil {
			actions.PermissionResult(p)
		}

	case "play":
		if actions == nil {
			return
		}
		if err := actions.Play(); err != nil {
			s.log.Info().Err(err).Msg("play failed")
		}

	case "stop":
		if actions != nil {
			actions.Stop()
		}

	case "resume":
		if actions != nil {
			actions.Resume()
		}

	case "prompt_dismissed":
		s.mu.Lock()
		s.prompt = nil
		s.mu.Unlock()
		if actions != nil {
			actions.PromptDismissed()
		}

	default:
		_ = client.send(WSResponse{Type: "error", Message: "unknown action: " + msg.Action})
	}
}

func (s *WebSurface) broadcast(resp WSResponse) {
	s.mu.Lock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.send(resp); err != nil {
			s.log.Debug().Err(err).Msg("websocket write error")
		}
	}
}
