package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	campusauth "github.com/campuskit/campusauth"
)

type fakeSource struct {
	snapshot campusauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() campusauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: campusauth.MetricsSnapshot{
			Counters:   map[campusauth.MetricID]uint64{},
			Histograms: map[campusauth.MetricID]campusauth.MetricsHistogram{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: campusauth.MetricsSnapshot{
			Counters: map[campusauth.MetricID]uint64{
				campusauth.MetricSigninSuccess: 7,
			},
			Histograms: map[campusauth.MetricID]campusauth.MetricsHistogram{
				campusauth.MetricValidateLatency: {
					Buckets: [8]uint64{1, 2, 3, 4, 5, 6, 7, 8},
					Count:   36,
				},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "campusauth_signin_success_total 7") {
		t.Fatalf("expected signin_success counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "campusauth_validate_latency_us_bucket{le=\"50\"} 1") {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "campusauth_validate_latency_us_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "campusauth_validate_latency_us_count 36") {
		t.Fatalf("expected histogram count in output, got:\n%s", out)
	}
	if !strings.Contains(out, "campusauth_audit_dropped_total 2") {
		t.Fatalf("expected audit dropped counter in output, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: campusauth.MetricsSnapshot{
			Counters:   map[campusauth.MetricID]uint64{campusauth.MetricSigninSuccess: 1},
			Histograms: map[campusauth.MetricID]campusauth.MetricsHistogram{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: campusauth.MetricsSnapshot{
			Counters: map[campusauth.MetricID]uint64{
				campusauth.MetricSigninSuccess:      1000,
				campusauth.MetricSigninFailure:      40,
				campusauth.MetricRefreshSuccess:     800,
				campusauth.MetricRefreshFailure:     10,
				campusauth.MetricSessionCreated:     800,
				campusauth.MetricSessionInvalidated: 20,
			},
			Histograms: map[campusauth.MetricID]campusauth.MetricsHistogram{
				campusauth.MetricValidateLatency: {
					Buckets: [8]uint64{10, 20, 30, 40, 50, 60, 70, 80},
					Count:   360,
				},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
