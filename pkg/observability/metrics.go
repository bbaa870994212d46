// Package observability exposes Prometheus metrics for the RPC surface and the
// extraction pipeline.
package observability

import (
	"context"
	"errors"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "entity_extractor"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// RequestsTotal tracks total number of RPC requests
	RequestsTotal *prometheus.CounterVec
	// RequestDuration tracks request duration
	RequestDuration *prometheus.HistogramVec
	// ActiveRequests tracks currently active requests
	ActiveRequests *prometheus.GaugeVec

	ExtractionsTotal *prometheus.CounterVec
	EntitiesTotal    *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	TokensPerMessage prometheus.Histogram
}

// NewMetrics registers the collectors with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_requests_total",
				Help:      "Total number of RPC requests",
			},
			[]string{"procedure", "code"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_duration_seconds",
				Help:      "RPC request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"procedure"},
		),
		ActiveRequests: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rpc_active_requests",
				Help:      "Number of active RPC requests",
			},
			[]string{"procedure"},
		),
		ExtractionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extractions_total",
				Help:      "Messages processed, by outcome",
			},
			[]string{"outcome"},
		),
		EntitiesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entities_total",
				Help:      "Entities emitted after reconciliation",
			},
			[]string{"category", "source"},
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each pipeline stage",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"stage"},
		),
		TokensPerMessage: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tokens_per_message",
				Help:      "Tokens produced per message before padding",
				Buckets:   prometheus.LinearBuckets(8, 8, 16),
			},
		),
	}
}

// ObserveStage records how long a pipeline stage took.
func (m *Metrics) ObserveStage(stage string, since time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(since).Seconds())
}

// ObserveExtraction counts one message and the entities it produced.
func (m *Metrics) ObserveExtraction(outcome string, tokens int, entities map[[2]string]int) {
	if m == nil {
		return
	}
	m.ExtractionsTotal.WithLabelValues(outcome).Inc()
	if tokens > 0 {
		m.TokensPerMessage.Observe(float64(tokens))
	}
	for key, n := range entities {
		m.EntitiesTotal.WithLabelValues(key[0], key[1]).Add(float64(n))
	}
}

// Interceptor returns a connect interceptor that collects RPC metrics.
func (m *Metrics) Interceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if m == nil {
				return next(ctx, req)
			}
			procedure := req.Spec().Procedure

			m.ActiveRequests.WithLabelValues(procedure).Inc()
			defer m.ActiveRequests.WithLabelValues(procedure).Dec()

			start := time.Now()
			defer func() {
				m.RequestDuration.WithLabelValues(procedure).Observe(time.Since(start).Seconds())
			}()

			resp, err := next(ctx, req)

			code := "ok"
			if err != nil {
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					code = connectErr.Code().String()
				} else {
					code = "unknown"
				}
			}
			m.RequestsTotal.WithLabelValues(procedure, code).Inc()

			return resp, err
		}
	}
}
