// Package metrics provides metrics collection capabilities for the application.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the metrics collectors for the application.
type Metrics struct {
	// Registry is the Prometheus registry for all metrics.
	Registry *prometheus.Registry

	// Common metrics
	RequestCount       *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RequestInFlight    *prometheus.GaugeVec
	ErrorCount         *prometheus.CounterVec
	ServiceUptime      prometheus.Gauge
	ServiceLastStarted prometheus.Gauge
	DependencyUp       *prometheus.GaugeVec

	// Submission metrics
	TransactionCount    *prometheus.CounterVec
	SubmitAttemptCount  *prometheus.CounterVec
	RetryCount          prometheus.Counter
	TransactionLatency  prometheus.Histogram
	AttemptsPerJob      prometheus.Histogram
	JobsInFlight        prometheus.Gauge
	ConfirmationPollers *prometheus.CounterVec
	WalletBalance       prometheus.Gauge
}

// Config holds the configuration for metrics.
type Config struct {
	// Namespace is the Prometheus namespace for all metrics.
	Namespace string
	// ServiceName is the name of the service that is collecting metrics.
	ServiceName string
}

// DefaultConfig returns a default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Namespace:   "txpilot",
		ServiceName: "txpilot",
	}
}

// New creates a new metrics collector with the given configuration.
func New(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		Registry: registry,

		// Common metrics
		RequestCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "request_total",
				Help:      "Total number of requests received",
			},
			[]string{"service", "method", "path", "status"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "method", "path"},
		),

		RequestInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "requests_in_flight",
				Help:      "Current number of requests being processed",
			},
			[]string{"service"},
		),

		ErrorCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "errors_total",
				Help:      "Total number of errors",
			},
			[]string{"service", "type", "code"},
		),

		ServiceUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "service_uptime_seconds",
				Help:      "Service uptime in seconds",
				ConstLabels: prometheus.Labels{
					"service": cfg.ServiceName,
				},
			},
		),

		ServiceLastStarted: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "service_last_started_timestamp",
				Help:      "Timestamp when the service was last started",
				ConstLabels: prometheus.Labels{
					"service": cfg.ServiceName,
				},
			},
		),

		DependencyUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "dependency_up",
				Help:      "Whether the dependency is up (1) or down (0)",
			},
			[]string{"service", "dependency"},
		),

		// Submission metrics
		TransactionCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "transactions",
				Name:      "total",
				Help:      "Total number of transactions by terminal outcome",
			},
			[]string{"outcome"},
		),

		SubmitAttemptCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "transactions",
				Name:      "attempts_total",
				Help:      "Total number of submit attempts by result",
			},
			[]string{"result"},
		),

		RetryCount: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "transactions",
				Name:      "retries_total",
				Help:      "Total number of retry attempts scheduled",
			},
		),

		TransactionLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "transactions",
				Name:      "latency_seconds",
				Help:      "Time from first submit to terminal outcome",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),

		AttemptsPerJob: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "transactions",
				Name:      "attempts_per_job",
				Help:      "Number of submit attempts per transaction job",
				Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
			},
		),

		JobsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "transactions",
				Name:      "jobs_in_flight",
				Help:      "Current number of jobs being submitted or confirmed",
			},
		),

		ConfirmationPollers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "transactions",
				Name:      "confirmation_polls_total",
				Help:      "Total number of confirmation status polls by result",
			},
			[]string{"result"},
		),

		WalletBalance: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "wallet",
				Name:      "balance",
				Help:      "Wallet balance in base units",
			},
		),
	}

	// Set initial values
	m.ServiceLastStarted.Set(float64(time.Now().Unix()))

	return m
}

// Handler returns an HTTP handler for exposing metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordUptime starts a goroutine that updates the service uptime metric.
func (m *Metrics) RecordUptime(done <-chan struct{}) {
	startTime := time.Now()
	ticker := time.NewTicker(1 * time.Second)

	go func() {
		for {
			select {
			case <-ticker.C:
				m.ServiceUptime.Set(time.Since(startTime).Seconds())
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
}

// RecordRequest records metrics for an HTTP request.
func (m *Metrics) RecordRequest(service, method, path string, status int, duration time.Duration) {
	m.RequestCount.WithLabelValues(service, method, path, http.StatusText(status)).Inc()
	m.RequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordError records an error metric.
func (m *Metrics) RecordError(service, errorType, errorCode string) {
	m.ErrorCount.WithLabelValues(service, errorType, errorCode).Inc()
}

// RecordDependencyStatus records the status of a dependency.
func (m *Metrics) RecordDependencyStatus(service, dependency string, up bool) {
	var value float64
	if up {
		value = 1
	}
	m.DependencyUp.WithLabelValues(service, dependency).Set(value)
}

// RecordSubmitAttempt records the result of a single submit attempt.
func (m *Metrics) RecordSubmitAttempt(result string) {
	m.SubmitAttemptCount.WithLabelValues(result).Inc()
}

// RecordRetry records that a retry was scheduled.
func (m *Metrics) RecordRetry() {
	m.RetryCount.Inc()
}

// RecordConfirmationPoll records the result of a single status poll.
func (m *Metrics) RecordConfirmationPoll(result string) {
	m.ConfirmationPollers.WithLabelValues(result).Inc()
}

// RecordJobOutcome records the terminal outcome of a transaction job.
func (m *Metrics) RecordJobOutcome(outcome string, attempts int, latency time.Duration) {
	m.TransactionCount.WithLabelValues(outcome).Inc()
	m.AttemptsPerJob.Observe(float64(attempts))
	m.TransactionLatency.Observe(latency.Seconds())
}

// RecordJobStarted marks a job as in flight.
func (m *Metrics) RecordJobStarted() {
	m.JobsInFlight.Inc()
}

// RecordJobFinished marks a job as no longer in flight.
func (m *Metrics) RecordJobFinished() {
	m.JobsInFlight.Dec()
}

// RecordWalletBalance records the wallet balance in base units.
func (m *Metrics) RecordWalletBalance(balance float64) {
	m.WalletBalance.Set(balance)
}
