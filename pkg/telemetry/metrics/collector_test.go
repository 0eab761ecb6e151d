package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"forseti-hq/forseti/pkg/config"
	"forseti-hq/forseti/pkg/engine"
)

func newCollector() *Collector {
	return NewCollector(&config.MetricsConfig{Namespace: "forseti"}, prometheus.NewRegistry())
}

func TestCollector_ObserveSession(t *testing.T) {
	c := newCollector()

	c.ObserveSession(&engine.Result{
		TerminalState: engine.StateConverged,
		Cycles:        2,
		Duration:      5 * time.Millisecond,
		Trace: []engine.TraceEntry{
			{Rule: "large"},
			{Rule: "toucher", Skipped: true},
		},
	})

	if got := testutil.ToFloat64(c.sessionsTotal.WithLabelValues("converged")); got != 1 {
		t.Errorf("sessions_total{converged} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.ruleFirings.WithLabelValues("large")); got != 1 {
		t.Errorf("rule_firings_total{large} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.ruleSkips.WithLabelValues("toucher")); got != 1 {
		t.Errorf("rule_skips_total{toucher} = %v, want 1", got)
	}
}

func TestCollector_ObserveReload(t *testing.T) {
	c := newCollector()

	c.ObserveReload(4, nil)
	c.ObserveReload(0, errors.New("compile failed"))

	if got := testutil.ToFloat64(c.ruleReloads.WithLabelValues("success")); got != 1 {
		t.Errorf("rule_reloads_total{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.ruleReloads.WithLabelValues("error")); got != 1 {
		t.Errorf("rule_reloads_total{error} = %v, want 1", got)
	}
	// A failed reload keeps the previous rule count.
	if got := testutil.ToFloat64(c.ruleSetRules); got != 4 {
		t.Errorf("rule_set_rules = %v, want 4", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := newCollector()
	c.ObserveSession(&engine.Result{TerminalState: engine.StateConverged})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "forseti_sessions_total") {
		t.Errorf("exposition output missing forseti_sessions_total:\n%s", body)
	}
}
