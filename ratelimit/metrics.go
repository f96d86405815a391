/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of metrics to analyze how the limiter is used.
type MetricsCollector interface {
	// SetKeysAmount sets the total number of tracked keys.
	SetKeysAmount(int)

	// IncAllowed increments the total number of admitted calls.
	IncAllowed()

	// IncDenied increments the total number of denied calls.
	IncDenied()

	// AddEvictions increments the total number of buckets evicted by the background sweep.
	AddEvictions(int)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// CurriedLabelNames is a list of label names that will be curried with the provided labels.
	// See PrometheusMetrics.MustCurryWith method for more details.
	// Keep in mind that if this list is not empty,
	// PrometheusMetrics.MustCurryWith method must be called further with the same labels.
	// Otherwise, the collector will panic.
	CurriedLabelNames []string
}

// PrometheusMetrics represents a Prometheus metrics for the limiter.
type PrometheusMetrics struct {
	KeysAmount     *prometheus.GaugeVec
	AllowedTotal   *prometheus.CounterVec
	DeniedTotal    *prometheus.CounterVec
	EvictionsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	keysAmount := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "rate_limiter_keys_amount",
			Help:        "Total number of keys tracked by the rate limiter.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	allowedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "rate_limiter_allowed_total",
			Help:        "Number of admitted calls.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	deniedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "rate_limiter_denied_total",
			Help:        "Number of denied calls.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	evictionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "rate_limiter_evictions_total",
			Help:        "Number of stale buckets evicted by the background sweep.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	return &PrometheusMetrics{
		KeysAmount:     keysAmount,
		AllowedTotal:   allowedTotal,
		DeniedTotal:    deniedTotal,
		EvictionsTotal: evictionsTotal,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		KeysAmount:     pm.KeysAmount.MustCurryWith(labels),
		AllowedTotal:   pm.AllowedTotal.MustCurryWith(labels),
		DeniedTotal:    pm.DeniedTotal.MustCurryWith(labels),
		EvictionsTotal: pm.EvictionsTotal.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.KeysAmount,
		pm.AllowedTotal,
		pm.DeniedTotal,
		pm.EvictionsTotal,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.KeysAmount)
	prometheus.Unregister(pm.AllowedTotal)
	prometheus.Unregister(pm.DeniedTotal)
	prometheus.Unregister(pm.EvictionsTotal)
}

// SetKeysAmount sets the total number of tracked keys.
func (pm *PrometheusMetrics) SetKeysAmount(amount int) {
	pm.KeysAmount.With(nil).Set(float64(amount))
}

// IncAllowed increments the total number of admitted calls.
func (pm *PrometheusMetrics) IncAllowed() {
	pm.AllowedTotal.With(nil).Inc()
}

// IncDenied increments the total number of denied calls.
func (pm *PrometheusMetrics) IncDenied() {
	pm.DeniedTotal.With(nil).Inc()
}

// AddEvictions increments the total number of evicted buckets.
func (pm *PrometheusMetrics) AddEvictions(n int) {
	pm.EvictionsTotal.With(nil).Add(float64(n))
}

type disabledMetrics struct{}

func (disabledMetrics) SetKeysAmount(int) {}
func (disabledMetrics) IncAllowed()       {}
func (disabledMetrics) IncDenied()        {}
func (disabledMetrics) AddEvictions(int)  {}

var disabledMetricsCollector = disabledMetrics{}
