package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	loadTotal     *prometheus.CounterVec
	loadDuration  prometheus.Histogram
	unloadTotal   *prometheus.CounterVec
	evictionTotal prometheus.Counter

	tierMoveTotal    *prometheus.CounterVec
	tierMoveDuration *prometheus.HistogramVec

	hotTokensUsed  prometheus.Gauge
	hotTokensLimit prometheus.Gauge
	loadedModules  prometheus.Gauge

	registeredModules prometheus.Gauge
	handlerFailures   *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			loadTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cortex_module_load_total",
					Help: "Total module load requests by status.",
				},
				[]string{"status"},
			),
			loadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "cortex_module_load_duration_seconds",
					Help:    "Module load duration in seconds, dependency chain included.",
					Buckets: prometheus.DefBuckets,
				},
			),
			unloadTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cortex_module_unload_total",
					Help: "Total module unloads by mode.",
				},
				[]string{"mode"},
			),
			evictionTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "cortex_module_eviction_total",
					Help: "Total modules evicted from the hot tier.",
				},
			),
			tierMoveTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cortex_tier_move_total",
					Help: "Total tier moves by source, destination and status.",
				},
				[]string{"from", "to", "status"},
			),
			tierMoveDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "cortex_tier_move_duration_seconds",
					Help:    "Tier move duration in seconds by source and destination.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"from", "to"},
			),
			hotTokensUsed: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "cortex_hot_tokens_used",
					Help: "Tokens currently held by the hot tier.",
				},
			),
			hotTokensLimit: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "cortex_hot_tokens_limit",
					Help: "Configured token budget of the hot tier.",
				},
			),
			loadedModules: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "cortex_loaded_modules",
					Help: "Number of currently loaded modules.",
				},
			),
			registeredModules: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "cortex_registered_modules",
					Help: "Number of modules in the registry catalog.",
				},
			),
			handlerFailures: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cortex_event_handler_failures_total",
					Help: "Total event handler failures by event name.",
				},
				[]string{"event"},
			),
		}

		prometheus.MustRegister(
			m.loadTotal,
			m.loadDuration,
			m.unloadTotal,
			m.evictionTotal,
			m.tierMoveTotal,
			m.tierMoveDuration,
			m.hotTokensUsed,
			m.hotTokensLimit,
			m.loadedModules,
			m.registeredModules,
			m.handlerFailures,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordModuleLoad(duration time.Duration, status string) {
	m := getMetrics()
	m.loadTotal.WithLabelValues(status).Inc()
	m.loadDuration.Observe(duration.Seconds())
}

func RecordModuleUnload(forced bool) {
	m := getMetrics()
	mode := "normal"
	if forced {
		mode = "forced"
	}
	m.unloadTotal.WithLabelValues(mode).Inc()
}

func RecordEviction() {
	getMetrics().evictionTotal.Inc()
}

func RecordTierMove(from, to string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.tierMoveTotal.WithLabelValues(from, to, status).Inc()
	m.tierMoveDuration.WithLabelValues(from, to).Observe(duration.Seconds())
}

func SetHotTokens(used, limit int) {
	m := getMetrics()
	m.hotTokensUsed.Set(float64(used))
	m.hotTokensLimit.Set(float64(limit))
}

func SetLoadedModules(count int) {
	getMetrics().loadedModules.Set(float64(count))
}

func SetRegisteredModules(count int) {
	getMetrics().registeredModules.Set(float64(count))
}

func RecordHandlerFailure(event string) {
	getMetrics().handlerFailures.WithLabelValues(event).Inc()
}
