// Package metrics holds the prometheus collectors the service exports.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evgeo_http_requests_total",
		Help: "HTTP requests by route pattern and status code",
	}, []string{"route", "status"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evgeo_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"route"})
	RowsLoadedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evgeo_ingest_rows_loaded_total",
		Help: "Rows committed by bulk loads",
	}, []string{"entity"})
	RowsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evgeo_ingest_rows_skipped_total",
		Help: "Source rows dropped during bulk loads",
	}, []string{"entity", "reason"})
	LoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evgeo_ingest_loads_total",
		Help: "Bulk load attempts by outcome (loaded, already_loaded, failed)",
	}, []string{"entity", "outcome"})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evgeo_cache_hits_total",
		Help: "Query cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evgeo_cache_misses_total",
		Help: "Query cache misses",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(RowsLoadedTotal)
	prometheus.MustRegister(RowsSkippedTotal)
	prometheus.MustRegister(LoadsTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
}

// Handler exposes the default registry for scraping at /metrics.
func Handler() http.Handler { return promhttp.Handler() }
