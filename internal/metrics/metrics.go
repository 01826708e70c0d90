// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metrics exposes Prometheus instrumentation for the acquisition
// pipeline. All methods are nil-safe so callers never need to guard on
// whether metrics are enabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	agentSearches       *prometheus.CounterVec
	agentSearchDuration *prometheus.HistogramVec
	pendingGroups       prometheus.Gauge

	downloadsStarted   prometheus.Counter
	downloadsCompleted prometheus.Counter
	downloadsFailed    prometheus.Counter
	downloadsCancelled prometheus.Counter
	downloadedBytes    prometheus.Counter
	activeDownloads    prometheus.Gauge
	queuedDownloads    prometheus.Gauge
}

// New registers the pipeline collectors plus the standard Go and process
// collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		agentSearches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamarr_agent_searches_total",
			Help: "Agent searches by agent and outcome.",
		}, []string{"agent", "outcome"}),
		agentSearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gamarr_agent_search_duration_seconds",
			Help:    "Agent search latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"agent"}),
		pendingGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gamarr_pending_match_groups",
			Help: "Pending match groups awaiting a decision.",
		}),
		downloadsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamarr_downloads_started_total",
			Help: "Downloads accepted by the orchestrator.",
		}),
		downloadsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamarr_downloads_completed_total",
			Help: "Downloads that reached completed.",
		}),
		downloadsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamarr_downloads_failed_total",
			Help: "Downloads that exhausted their retries.",
		}),
		downloadsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamarr_downloads_cancelled_total",
			Help: "Downloads cancelled by the operator.",
		}),
		downloadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamarr_downloaded_bytes_total",
			Help: "Bytes written to disk by completed transfers.",
		}),
		activeDownloads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gamarr_active_downloads",
			Help: "Downloads currently transferring.",
		}),
		queuedDownloads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gamarr_queued_downloads",
			Help: "Downloads waiting for a slot.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.agentSearches,
		m.agentSearchDuration,
		m.pendingGroups,
		m.downloadsStarted,
		m.downloadsCompleted,
		m.downloadsFailed,
		m.downloadsCancelled,
		m.downloadedBytes,
		m.activeDownloads,
		m.queuedDownloads,
	)
	return m
}

func (m *Metrics) ObserveAgentSearch(agent string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.agentSearches.WithLabelValues(agent, outcome).Inc()
	m.agentSearchDuration.WithLabelValues(agent).Observe(elapsed.Seconds())
}

func (m *Metrics) SetPendingGroups(n int) {
	if m == nil {
		return
	}
	m.pendingGroups.Set(float64(n))
}

func (m *Metrics) DownloadStarted() {
	if m == nil {
		return
	}
	m.downloadsStarted.Inc()
}

func (m *Metrics) DownloadCompleted(bytes int64) {
	if m == nil {
		return
	}
	m.downloadsCompleted.Inc()
	m.downloadedBytes.Add(float64(bytes))
}

func (m *Metrics) DownloadFailed() {
	if m == nil {
		return
	}
	m.downloadsFailed.Inc()
}

func (m *Metrics) DownloadCancelled() {
	if m == nil {
		return
	}
	m.downloadsCancelled.Inc()
}

func (m *Metrics) SetActiveDownloads(n int) {
	if m == nil {
		return
	}
	m.activeDownloads.Set(float64(n))
}

func (m *Metrics) SetQueuedDownloads(n int) {
	if m == nil {
		return
	}
	m.queuedDownloads.Set(float64(n))
}
