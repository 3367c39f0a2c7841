package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry and every collector the API exports.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	generationRuns     *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	placedEntries      prometheus.Counter
	unmetHours         prometheus.Counter
	batchOutcomes      *prometheus.CounterVec
	auditConflicts     *prometheus.GaugeVec
	auditLastRun       prometheus.Gauge
	overloadedStaff    prometheus.Gauge
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache set operations",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
		generationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetable_generation_runs_total",
			Help: "Timetable generation runs by outcome",
		}, []string{"outcome"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "timetable_generation_duration_seconds",
			Help:    "Wall time of a generation run including persistence",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"strategy"}),
		placedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetable_placed_entries_total",
			Help: "Timetable entries committed by generation runs",
		}),
		unmetHours: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetable_unmet_hours_total",
			Help: "Weekly hours left unplaced by generation runs",
		}),
		batchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetable_batch_cohorts_total",
			Help: "Cohorts processed by generate-all batches by outcome",
		}, []string{"outcome"}),
		auditConflicts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "timetable_audit_conflicts",
			Help: "Conflicts found by the last occupancy audit by dimension",
		}, []string{"dimension"}),
		auditLastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "timetable_audit_last_run_timestamp_seconds",
			Help: "Unix time of the last completed occupancy audit",
		}),
		overloadedStaff: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "timetable_overloaded_staff",
			Help: "Staff whose assigned or scheduled hours exceed their maximum",
		}),
	}

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency.(prometheus.Collector), m.cacheWrite.(prometheus.Collector), m.cacheHits, m.cacheMisses,
		m.generationRuns, m.generationDuration, m.placedEntries, m.unmetHours, m.batchOutcomes,
		m.auditConflicts, m.auditLastRun, m.overloadedStaff,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveGeneration records one finished generation run. outcome is a status or error code.
func (m *MetricsService) ObserveGeneration(outcome, strategy string, placed, unmet int, duration time.Duration) {
	if m == nil {
		return
	}
	m.generationRuns.WithLabelValues(outcome).Inc()
	if strategy != "" {
		m.generationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	}
	m.placedEntries.Add(float64(placed))
	m.unmetHours.Add(float64(unmet))
}

// ObserveBatchCohort counts one cohort processed by a batch.
func (m *MetricsService) ObserveBatchCohort(outcome string) {
	if m == nil {
		return
	}
	m.batchOutcomes.WithLabelValues(outcome).Inc()
}

// SetAuditResult publishes the latest audit counts.
func (m *MetricsService) SetAuditResult(byDimension map[string]int, overloaded int, at time.Time) {
	if m == nil {
		return
	}
	m.auditConflicts.Reset()
	for dimension, count := range byDimension {
		m.auditConflicts.WithLabelValues(dimension).Set(float64(count))
	}
	m.overloadedStaff.Set(float64(overloaded))
	m.auditLastRun.Set(float64(at.Unix()))
}
