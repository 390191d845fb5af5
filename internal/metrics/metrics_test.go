package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"productive-cloud/internal/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSync(t *testing.T) {
	m := New()

	m.ObserveSync(domain.DataTypeHabits, domain.ActionCreated)
	m.ObserveSync(domain.DataTypeHabits, domain.ActionSynced)
	m.ObserveSync(domain.DataTypeHabits, domain.ActionSynced)

	if got := testutil.ToFloat64(m.SyncActions.WithLabelValues("habits", "synced")); got != 2 {
		t.Errorf("synced counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SyncActions.WithLabelValues("habits", "created")); got != 1 {
		t.Errorf("created counter = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RequestsTotal.WithLabelValues("GET", "/api/data", "200").Inc()
	m.ObserveSync(domain.DataTypeCRM, domain.ActionUpdated)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"http_requests_total", "sync_reconcile_total", `action="updated"`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNewUsesIndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.ObserveSync(domain.DataTypeSettings, domain.ActionCreated)
	if got := testutil.ToFloat64(b.SyncActions.WithLabelValues("settings", "created")); got != 0 {
		t.Errorf("second registry counter = %v, want 0", got)
	}
}
