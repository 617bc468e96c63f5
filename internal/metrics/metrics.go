// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

// Package metrics holds the Prometheus collectors shared by the encoder,
// the indexing pipeline and the search engine. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics owns a private registry so tests can create independent instances.
type Metrics struct {
	registry *prometheus.Registry

	encoderLoads    *prometheus.CounterVec
	encoderLoadTime prometheus.Histogram
	encodeDuration  *prometheus.HistogramVec
	indexOperations *prometheus.CounterVec
	searchDuration  *prometheus.HistogramVec
	searchResults   prometheus.Histogram
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		encoderLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "locus_encoder_loads_total",
			Help: "Text encoder model loads by result.",
		}, []string{"result"}),
		encoderLoadTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "locus_encoder_load_duration_seconds",
			Help:    "Time spent loading the text encoder model.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}),
		encodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "locus_encode_duration_seconds",
			Help:    "Latency of a single text encode.",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		indexOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "locus_index_operations_total",
			Help: "Indexing pipeline operations by kind and result.",
		}, []string{"op", "result"}),
		searchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "locus_search_duration_seconds",
			Help:    "End-to-end similarity search latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode", "result"}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "locus_search_results",
			Help:    "Number of matches returned per search.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.encoderLoads,
		m.encoderLoadTime,
		m.encodeDuration,
		m.indexOperations,
		m.searchDuration,
		m.searchResults,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveEncoderLoad(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.encoderLoads.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.encoderLoadTime.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveEncode(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.encodeDuration.WithLabelValues(result(err)).Observe(d.Seconds())
}

// ObserveIndexOperation counts one create, update, delete or reindex call.
func (m *Metrics) ObserveIndexOperation(op string, err error) {
	if m == nil {
		return
	}
	m.indexOperations.WithLabelValues(op, result(err)).Inc()
}

// ObserveSearch records latency under mode ("matcher" or "scan") and, on
// success, the result count.
func (m *Metrics) ObserveSearch(mode string, d time.Duration, results int, err error) {
	if m == nil {
		return
	}
	m.searchDuration.WithLabelValues(mode, result(err)).Observe(d.Seconds())
	if err == nil {
		m.searchResults.Observe(float64(results))
	}
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
