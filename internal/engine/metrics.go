package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: сколько занял запрос к источнику
	FetchDuration *prometheus.HistogramVec

	// Traffic: запросы по источникам и исходам
	FetchTotal *prometheus.CounterVec

	// Ответы, пришедшие после более свежего запроса или для сменившегося выбора
	StaleDropped *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - ок, 1 - выбило)
	CircuitBreakerState *prometheus.GaugeVec

	// Команды оператора
	ActionsTotal *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		FetchDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riskwatch_fetch_duration_seconds",
			Help:    "Histogram of backend fetch latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"source", "outcome"}),

		FetchTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "riskwatch_fetch_total",
			Help: "Total number of backend fetches.",
		}, []string{"source", "outcome"}), // outcome: ok, error; вытесненные ответы считает StaleDropped

		StaleDropped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "riskwatch_stale_results_dropped_total",
			Help: "Results discarded because a newer request or selection superseded them.",
		}, []string{"source"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskwatch_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=open).",
		}, []string{"name"}),

		ActionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "riskwatch_actions_total",
			Help: "Operator commands by action and outcome.",
		}, []string{"action", "outcome"}),
	}
}

func (m *Metrics) observeFetch(src Source, outcome string, took time.Duration) {
	m.FetchDuration.WithLabelValues(string(src), outcome).Observe(took.Seconds())
	m.FetchTotal.WithLabelValues(string(src), outcome).Inc()
}

// BreakerObserver отдает колбэк для client.Options.OnBreaker.
func (m *Metrics) BreakerObserver() func(name string, open bool) {
	return func(name string, open bool) {
		v := 0.0
		if open {
			v = 1
		}
		m.CircuitBreakerState.WithLabelValues(name).Set(v)
	}
}
