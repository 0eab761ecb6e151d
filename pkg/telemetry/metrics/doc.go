// Package metrics provides Prometheus metrics for the inference engine.
//
// The Collector tracks session outcomes, rule firings and rule set
// reloads. Metrics are registered on a dedicated registry and exposed
// through Handler:
//
//	collector := metrics.NewCollector(&cfg.Metrics, nil)
//	collector.ObserveSession(result)
//	http.Handle(cfg.Metrics.Path, collector.Handler())
package metrics
