package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"forseti-hq/forseti/pkg/config"
	"forseti-hq/forseti/pkg/engine"
)

// Collector tracks engine metrics on a dedicated Prometheus registry.
//
// Metrics:
//   - forseti_sessions_total: sessions by terminal state
//   - forseti_session_duration_seconds: session wall-clock duration
//   - forseti_session_cycles: rule firings per session
//   - forseti_rule_firings_total: firings by rule
//   - forseti_rule_skips_total: aborted activations by rule
//   - forseti_rule_reloads_total: rule set reloads by status
//   - forseti_rule_set_rules: rules in the active set
type Collector struct {
	registry *prometheus.Registry

	sessionsTotal   *prometheus.CounterVec
	sessionDuration prometheus.Histogram
	sessionCycles   prometheus.Histogram

	ruleFirings *prometheus.CounterVec
	ruleSkips   *prometheus.CounterVec

	ruleReloads  *prometheus.CounterVec
	ruleSetRules prometheus.Gauge
}

// NewCollector creates and registers the engine metrics. A nil registry
// gets a fresh one.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	ns := cfg.Namespace

	c := &Collector{
		registry: registry,

		sessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "sessions_total",
				Help:      "Total number of inference sessions by terminal state",
			},
			[]string{"terminal_state"},
		),

		sessionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "session_duration_seconds",
				Help:      "Wall-clock duration of inference sessions",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs to ~26s
			},
		),

		sessionCycles: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "session_cycles",
				Help:      "Rule firings per session",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1 to 2048
			},
		),

		ruleFirings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "rule_firings_total",
				Help:      "Total rule firings by rule",
			},
			[]string{"rule"},
		),

		ruleSkips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "rule_skips_total",
				Help:      "Total aborted activations by rule",
			},
			[]string{"rule"},
		),

		ruleReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "rule_reloads_total",
				Help:      "Total rule set reloads by status",
			},
			[]string{"status"},
		),

		ruleSetRules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "rule_set_rules",
				Help:      "Number of rules in the active rule set",
			},
		),
	}

	registry.MustRegister(
		c.sessionsTotal,
		c.sessionDuration,
		c.sessionCycles,
		c.ruleFirings,
		c.ruleSkips,
		c.ruleReloads,
		c.ruleSetRules,
	)

	return c
}

// ObserveSession records one finished session.
func (c *Collector) ObserveSession(res *engine.Result) {
	c.sessionsTotal.WithLabelValues(res.TerminalState.String()).Inc()
	c.sessionDuration.Observe(res.Duration.Seconds())
	c.sessionCycles.Observe(float64(res.Cycles))

	for _, e := range res.Trace {
		if e.Skipped {
			c.ruleSkips.WithLabelValues(e.Rule).Inc()
		} else {
			c.ruleFirings.WithLabelValues(e.Rule).Inc()
		}
	}
}

// ObserveReload records a rule set reload attempt. On success the active
// rule count gauge is updated.
func (c *Collector) ObserveReload(ruleCount int, err error) {
	if err != nil {
		c.ruleReloads.WithLabelValues("error").Inc()
		return
	}
	c.ruleReloads.WithLabelValues("success").Inc()
	c.ruleSetRules.Set(float64(ruleCount))
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }
