// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus counters for patch application.
package metrics

import (
	"errors"
	"time"

	"github.com/petar-djukic/go-patch/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gopatch"

// Failure kinds used as the "kind" label.
const (
	KindNoMatch   = "no_match"
	KindAmbiguous = "ambiguous"
	KindOther     = "other"
)

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	Blocks        *prometheus.CounterVec // Applied blocks by match mode
	Failures      *prometheus.CounterVec // Failed applications by kind
	Runs          *prometheus.CounterVec // Controller runs by final stage and result
	ApplyDuration prometheus.Histogram   // Time spent in a single Engine.Apply call
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// to expose them on the default /metrics handler, or a fresh registry in
// tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Blocks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_total",
			Help:      "Edit blocks applied, by match mode",
		}, []string{"mode"}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Patch applications that failed, by failure kind",
		}, []string{"kind"}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Fallback controller runs, by final stage and result",
		}, []string{"stage", "result"}),
		ApplyDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apply_duration_seconds",
			Help:      "Duration of a single patch application in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

// ObserveApply records one Engine.Apply call.
func (m *Metrics) ObserveApply(patched *types.Patched, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ApplyDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.Failures.WithLabelValues(FailureKind(err)).Inc()
		return
	}
	for _, b := range patched.Blocks {
		m.Blocks.WithLabelValues(b.Mode.String()).Inc()
	}
}

// ObserveRun records the end of a controller run.
func (m *Metrics) ObserveRun(stage string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.Runs.WithLabelValues(stage, result).Inc()
}

// FailureKind classifies err for the "kind" label.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, types.ErrNoMatch):
		return KindNoMatch
	case errors.Is(err, types.ErrAmbiguousMatch):
		return KindAmbiguous
	default:
		return KindOther
	}
}
