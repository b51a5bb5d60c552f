// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// AllowMockKey is the developer setting that permits simulated providers.
const AllowMockKey = "ALLOW_MOCK_LOCATIONS"

// Setting reports the allow-mock-locations developer setting. Enabled must
// return immediately.
type Setting interface {
	Enabled() bool
}

// StaticSetting is a fixed value, for configs without a settings file.
type StaticSetting bool

func (s StaticSetting) Enabled() bool { return bool(s) }

// FileSetting reads ALLOW_MOCK_LOCATIONS from a KEY=VALUE settings file
// and follows edits to it. The last value read is cached, so Enabled
// never touches the disk.
type FileSetting struct {
	path    string
	log     zerolog.Logger
	enabled atomic.Bool

	watcher   *fsnotify.Watcher
	changed   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewFileSetting loads path and starts watching its directory, so the
// setting also follows editors that replace the file instead of writing it.
func NewFileSetting(path string, log zerolog.Logger) (*FileSetting, error) {
	s := &FileSetting{
		path:    path,
		log:     log.With().Str("component", "setting").Str("path", path).Logger(),
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if err := s.reload(); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	s.watcher = w

	go s.run()
	return s, nil
}

// Enabled returns the cached setting.
func (s *FileSetting) Enabled() bool {
	return s.enabled.Load()
}

// Changed receives a value after each reload that changed the setting.
func (s *FileSetting) Changed() <-chan struct{} {
	return s.changed
}

// Close stops watching.
func (s *FileSetting) Close() {
	s.closeOnce.Do(func() {
		s.watcher.Close()
		<-s.done
	})
}

func (s *FileSetting) run() {
	defer close(s.done)

	target := filepath.Clean(s.path)
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			// wait some additional time to avoid reading a half-written file
			time.Sleep(10 * time.Millisecond)

			before := s.enabled.Load()
			if err := s.reload(); err != nil {
				// a missing or broken file means the setting is off
				s.log.Warn().Err(err).Msg("settings file unreadable, treating mock locations as disabled")
				s.enabled.Store(false)
			}
			if s.enabled.Load() != before {
				s.log.Info().Bool("enabled", s.enabled.Load()).Msg("allow mock locations changed")
				select {
				case s.changed <- struct{}{}:
				default:
				}
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Error().Err(err).Msg("settings watcher error")
		}
	}
}

func (s *FileSetting) reload() error {
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("settings file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("env")
	v.SetDefault(AllowMockKey, false)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read settings file: %w", err)
	}
	s.enabled.Store(v.GetBool(AllowMockKey))
	return nil
}
