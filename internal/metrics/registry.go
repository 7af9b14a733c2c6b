// Package metrics keeps the gateway's counters and renders them in the
// Prometheus text exposition format.
package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Default is the process-wide registry used by the pre-defined metrics.
var Default = NewRegistry("laureate")

// Registry aggregates counters, gauges and histograms under a name prefix.
type Registry struct {
	prefix     string
	startTime  time.Time
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

func NewRegistry(prefix string) *Registry {
	return &Registry{
		prefix:     prefix,
		startTime:  time.Now(),
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

type series struct {
	name   string
	help   string
	labels string
}

func (s series) key() string { return s.name + "{" + s.labels + "}" }

// Counter is a monotonically increasing counter.
type Counter struct {
	series
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	series
	value atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks the distribution of observed values.
type Histogram struct {
	series
	mu     sync.Mutex
	bounds []float64
	counts []int64
	count  int64
	sum    float64
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.counts[i]++
		}
	}
}

// ObserveSince records the seconds elapsed since start.
func (h *Histogram) ObserveSince(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Counter returns or creates the counter name{labels}.
func (r *Registry) Counter(name, help, labels string) *Counter {
	s := series{name: r.prefix + "_" + name, help: help, labels: labels}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[s.key()]; ok {
		return c
	}
	c := &Counter{series: s}
	r.counters[s.key()] = c
	return c
}

// Gauge returns or creates the gauge name{labels}.
func (r *Registry) Gauge(name, help, labels string) *Gauge {
	s := series{name: r.prefix + "_" + name, help: help, labels: labels}
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[s.key()]; ok {
		return g
	}
	g := &Gauge{series: s}
	r.gauges[s.key()] = g
	return g
}

// Histogram returns or creates the histogram name{labels}. A +Inf bucket is
// always present.
func (r *Registry) Histogram(name, help, labels string, buckets []float64) *Histogram {
	s := series{name: r.prefix + "_" + name, help: help, labels: labels}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[s.key()]; ok {
		return h
	}
	bounds := append([]float64(nil), buckets...)
	sort.Float64s(bounds)
	if len(bounds) == 0 || !math.IsInf(bounds[len(bounds)-1], 1) {
		bounds = append(bounds, math.Inf(1))
	}
	h := &Histogram{series: s, bounds: bounds, counts: make([]int64, len(bounds))}
	r.histograms[s.key()] = h
	return h
}

// Handler renders every metric in Prometheus text format.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.Render(w)
	}
}

// Render writes the exposition text to w, series sorted by name.
func (r *Registry) Render(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fmt.Fprintf(w, "# HELP %s_uptime_seconds Time since start in seconds\n", r.prefix)
	fmt.Fprintf(w, "# TYPE %s_uptime_seconds gauge\n", r.prefix)
	fmt.Fprintf(w, "%s_uptime_seconds %d\n", r.prefix, int64(time.Since(r.startTime).Seconds()))

	typed := make(map[string]bool)
	header := func(s series, kind string) {
		if typed[s.name] {
			return
		}
		typed[s.name] = true
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", s.name, s.help, s.name, kind)
	}

	for _, k := range sortedKeys(r.counters) {
		c := r.counters[k]
		header(c.series, "counter")
		fmt.Fprintf(w, "%s %d\n", sample(c.name, c.labels, ""), c.Value())
	}
	for _, k := range sortedKeys(r.gauges) {
		g := r.gauges[k]
		header(g.series, "gauge")
		fmt.Fprintf(w, "%s %d\n", sample(g.name, g.labels, ""), g.Value())
	}
	for _, k := range sortedKeys(r.histograms) {
		h := r.histograms[k]
		header(h.series, "histogram")
		h.mu.Lock()
		for i, le := range h.bounds {
			bound := fmt.Sprintf("%g", le)
			if math.IsInf(le, 1) {
				bound = "+Inf"
			}
			fmt.Fprintf(w, "%s %d\n", sample(h.name+"_bucket", h.labels, `le="`+bound+`"`), h.counts[i])
		}
		fmt.Fprintf(w, "%s %d\n", sample(h.name+"_count", h.labels, ""), h.count)
		fmt.Fprintf(w, "%s %f\n", sample(h.name+"_sum", h.labels, ""), h.sum)
		h.mu.Unlock()
	}
}

func sample(name, labels, extra string) string {
	switch {
	case labels == "" && extra == "":
		return name
	case labels == "":
		return name + "{" + extra + "}"
	case extra == "":
		return name + "{" + labels + "}"
	default:
		return name + "{" + labels + "," + extra + "}"
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
