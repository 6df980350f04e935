package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"ocs-worker/api/internal/worker"
)

// Collector — метрики воркера. Регистрируется в переданном реестре,
// поэтому в тестах можно создавать сколько угодно экземпляров.
type Collector struct {
	itemsTotal       *prometheus.CounterVec
	itemDuration     prometheus.Histogram
	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	state            *prometheus.GaugeVec
	finishedRate     prometheus.Gauge

	logger *zap.Logger
}

func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := promauto.With(reg)
	return &Collector{
		itemsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Processed questions by outcome",
		}, []string{"outcome"}),
		itemDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Time spent on one question including retries",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		providerRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Answer source requests by provider and status",
		}, []string{"provider", "status"}),
		providerLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Answer source latency",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_cache_lookups_total",
			Help:      "Answer cache lookups by provider and result",
		}, []string{"provider", "result"}),
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_state",
			Help:      "1 for the current worker state",
		}, []string{"state"}),
		finishedRate: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "finished_rate",
			Help:      "Share of answered questions in the last run",
		}),
		logger: logger.With(zap.String("component", "metrics")),
	}
}

// ObserveItem — worker.Recorder.
func (c *Collector) ObserveItem(outcome string, took time.Duration) {
	c.itemsTotal.WithLabelValues(outcome).Inc()
	c.itemDuration.Observe(took.Seconds())
}

// ObserveProvider — answerer.Observer.
func (c *Collector) ObserveProvider(name string, took time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.providerRequests.WithLabelValues(name, status).Inc()
	c.providerLatency.WithLabelValues(name).Observe(took.Seconds())
}

// ObserveCache — попадание или промах кэша ответов.
func (c *Collector) ObserveCache(provider string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(provider, result).Inc()
}

// SetState выставляет 1 текущему состоянию и 0 остальным; подходит для Control.Notify.
func (c *Collector) SetState(s worker.State) {
	for _, st := range []worker.State{worker.Idle, worker.Running, worker.Paused, worker.Closed} {
		v := 0.0
		if st == s {
			v = 1
		}
		c.state.WithLabelValues(st.String()).Set(v)
	}
	c.logger.Debug("worker state", zap.Stringer("state", s))
}

func (c *Collector) SetFinishedRate(rate float64) {
	c.finishedRate.Set(rate)
}
