package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "report_assistant"

// Metrics groups the collectors of one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	reports    *prometheus.CounterVec
	tasks      *prometheus.CounterVec
	scheduled  *prometheus.CounterVec
	generation *prometheus.HistogramVec
	chat       *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "reports_total",
			Help:      "Report creations by outcome",
		}, []string{"outcome"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "tasks_total",
			Help:      "Deferred task executions by task and outcome",
		}, []string{"task", "outcome"}),
		scheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "scheduled_total",
			Help:      "Deferred tasks handed to the scheduler by task and status",
		}, []string{"task", "status"}),
		generation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "latency_seconds",
			Help:      "Latency of content generation calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}, []string{"kind", "status"}),
		chat: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Chat messages by detected intent",
		}, []string{"intent"}),
	}
	registry.MustRegister(
		m.reports,
		m.tasks,
		m.scheduled,
		m.generation,
		m.chat,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ReportOutcome(outcome string) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TaskOutcome(task, outcome string) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(task, outcome).Inc()
}

func (m *Metrics) Scheduled(task, status string) {
	if m == nil {
		return
	}
	m.scheduled.WithLabelValues(task, status).Inc()
}

func (m *Metrics) ObserveGeneration(kind, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generation.WithLabelValues(kind, status).Observe(elapsed.Seconds())
}

func (m *Metrics) ChatIntent(intent string) {
	if m == nil {
		return
	}
	m.chat.WithLabelValues(intent).Inc()
}
