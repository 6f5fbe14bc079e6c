// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics holds the Prometheus instruments for inkwell.
//
// Instruments register with the default registry on import; the HTTP server
// exposes them on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_invocations_total",
		Help: "Engine invocations by final marker state.",
	}, []string{"status"})

	InvocationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inkwell_invocation_duration_seconds",
		Help:    "Time from marker placement to resolution or failure.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	TemplateFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_template_fallbacks_total",
		Help: "Prompt templates without a {prompt} placeholder.",
	})

	StreamFragmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_stream_fragments_total",
		Help: "Non-empty response fragments decoded from generation streams.",
	})
)

// ObserveInvocation counts a finished invocation and records its duration.
func ObserveInvocation(status string, d time.Duration) {
	InvocationsTotal.WithLabelValues(status).Inc()
	InvocationDuration.Observe(d.Seconds())
}
