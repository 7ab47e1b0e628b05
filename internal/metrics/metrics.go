// Package metrics содержит счётчики Prometheus сервиса учёта тренировок.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics объединяет метрики сервиса и их реестр.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	recordsCreated    prometheus.Counter
	recomputeDuration prometheus.Histogram
	recomputeFailures prometheus.Counter
}

// New создаёт набор метрик с собственным реестром.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traintrack",
			Name:      "http_requests_total",
			Help:      "Количество HTTP-запросов по методу и статусу.",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "traintrack",
			Name:      "http_request_duration_seconds",
			Help:      "Длительность обработки HTTP-запросов.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		recordsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traintrack",
			Name:      "training_records_created_total",
			Help:      "Количество созданных записей о тренировках.",
		}),
		recomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "traintrack",
			Name:      "stats_recompute_duration_seconds",
			Help:      "Длительность пересчёта статистики пользователя.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		recomputeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traintrack",
			Name:      "stats_recompute_failures_total",
			Help:      "Количество неудачных сохранений пересчитанной статистики.",
		}),
	}

	registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.recordsCreated,
		m.recomputeDuration,
		m.recomputeFailures,
	)

	return m
}

// Handler возвращает HTTP-обработчик для эндпоинта /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware считает запросы и их длительность.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		if sw.status == 0 {
			sw.status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, strconv.Itoa(sw.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// RecordCreated учитывает созданную запись о тренировке.
func (m *Metrics) RecordCreated() {
	m.recordsCreated.Inc()
}

// ObserveRecompute учитывает длительность одного пересчёта статистики.
func (m *Metrics) ObserveRecompute(d time.Duration) {
	m.recomputeDuration.Observe(d.Seconds())
}

// RecomputeFailed учитывает неудачное сохранение статистики.
func (m *Metrics) RecomputeFailed() {
	m.recomputeFailures.Inc()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(p)
}
