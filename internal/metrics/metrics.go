// Package metrics exposes Prometheus metrics of the ingestion and probing pipelines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acrc_car_ingest_total",
			Help: "Number of car archive ingestions by final stage (ready, stored, extracted).",
		},
		[]string{"stage"})
	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "acrc_car_ingest_duration_seconds",
			Help:    "A histogram of successful car archive ingestion durations.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		})
	ProbeCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acrc_server_probe_total",
			Help: "Number of game server HTTP API calls by endpoint and result.",
		},
		[]string{"endpoint", "result"})
	LinkParseCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acrc_link_parse_total",
			Help: "Number of connection link parses by matched format (or \"none\").",
		},
		[]string{"format"})
)
