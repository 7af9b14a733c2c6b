package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistry_CounterIsShared(t *testing.T) {
	r := NewRegistry("test")
	a := r.Counter("hits_total", "hits", `kind="a"`)
	b := r.Counter("hits_total", "hits", `kind="a"`)
	a.Inc()
	b.Inc()
	if a.Value() != 2 {
		t.Fatalf("expected 2, got %d", a.Value())
	}
}

func TestRegistry_GaugeUpDown(t *testing.T) {
	r := NewRegistry("test")
	g := r.Gauge("depth", "depth", "")
	g.Inc()
	g.Inc()
	g.Dec()
	if g.Value() != 1 {
		t.Fatalf("expected 1, got %d", g.Value())
	}
	g.Set(7)
	if g.Value() != 7 {
		t.Fatalf("expected 7, got %d", g.Value())
	}
}

func TestRegistry_Exposition(t *testing.T) {
	r := NewRegistry("test")
	r.Counter("hits_total", "Total hits", `kind="a"`).Inc()
	r.Counter("hits_total", "Total hits", `kind="b"`)
	h := r.Histogram("latency_seconds", "Latency", "", []float64{1, 0.5})
	h.Observe(0.7)

	rec := httptest.NewRecorder()
	r.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		"# TYPE test_hits_total counter",
		`test_hits_total{kind="a"} 1`,
		`test_hits_total{kind="b"} 0`,
		`test_latency_seconds_bucket{le="0.5"} 0`,
		`test_latency_seconds_bucket{le="1"} 1`,
		`test_latency_seconds_bucket{le="+Inf"} 1`,
		"test_latency_seconds_count 1",
		"test_uptime_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q\n%s", want, body)
		}
	}
	if strings.Count(body, "# TYPE test_hits_total") != 1 {
		t.Error("TYPE line should be written once per metric name")
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
}
