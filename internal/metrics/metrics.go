// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exposes the mock provider's activity to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relabs-tech/fake_location/internal/geo"
	"github.com/relabs-tech/fake_location/internal/mockgps"
)

const namespace = "fakelocation"

// Collector bundles the mock provider metrics.
type Collector struct {
	Pushes        *prometheus.CounterVec
	Registrations *prometheus.CounterVec
	Failures      *prometheus.CounterVec
	State         *prometheus.GaugeVec
	Transitions   prometheus.Counter
}

// NewCollector registers the metrics against reg, defaulting to the
// global registry when nil. Metrics already registered are reused.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		Pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pushes_total",
			Help:      "Simulated fixes pushed to the location service, by result.",
		}, []string{"result"}),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Provider registration attempts, by result.",
		}, []string{"result"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Transitions into the failed state, by reason.",
		}, []string{"reason"}),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "1 for the current mock GPS state, 0 for the others.",
		}, []string{"state"}),
		Transitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "State transitions of the mock GPS machine.",
		}),
	}

	var err error
	if c.Pushes, err = register(reg, c.Pushes); err != nil {
		return nil, err
	}
	if c.Registrations, err = register(reg, c.Registrations); err != nil {
		return nil, err
	}
	if c.Failures, err = register(reg, c.Failures); err != nil {
		return nil, err
	}
	if c.State, err = register(reg, c.State); err != nil {
		return nil, err
	}
	if c.Transitions, err = register(reg, c.Transitions); err != nil {
		return nil, err
	}
	return c, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return col, err
	}
	return col, nil
}

// ObserveState records one machine state. Pass it to Machine.Subscribe.
func (c *Collector) ObserveState(st mockgps.State) {
	for _, k := range []mockgps.Kind{mockgps.Idle, mockgps.Starting, mockgps.On, mockgps.Failed} {
		v := 0.0
		if k == st.Kind {
			v = 1
		}
		c.State.WithLabelValues(k.String()).Set(v)
	}
	if st.Seq > 0 {
		c.Transitions.Inc()
	}
	if st.Kind == mockgps.Failed {
		c.Failures.WithLabelValues(st.Reason.String()).Inc()
	}
}

// InstrumentGate wraps g so registrations and pushes are counted.
func (c *Collector) InstrumentGate(g mockgps.Gate) mockgps.Gate {
	return &instrumentedGate{Gate: g, c: c}
}

type instrumentedGate struct {
	mockgps.Gate
	c *Collector
}

func (g *instrumentedGate) Register() error {
	err := g.Gate.Register()
	g.c.Registrations.WithLabelValues(result(err)).Inc()
	return err
}

func (g *instrumentedGate) PushFix(c geo.Coordinate, ts time.Time) error {
	err := g.Gate.PushFix(c, ts)
	g.c.Pushes.WithLabelValues(result(err)).Inc()
	return err
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	return mockgps.ReasonOf(err).String()
}
