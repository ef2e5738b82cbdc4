package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// histogram counts observations into fixed buckets. Bounds must be sorted
// ascending; the last bucket is implicit +Inf.
type histogram struct {
	mu     sync.Mutex
	bounds []float64
	counts []int64
	sum    float64
	total  int64
}

func newHistogram(bounds []float64) *histogram {
	return &histogram{
		bounds: bounds,
		counts: make([]int64, len(bounds)+1),
	}
}

func (h *histogram) observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[sort.SearchFloat64s(h.bounds, v)]++
	h.sum += v
	h.total++
}

// snapshot returns cumulative bucket counts (one per bound, then +Inf),
// the total observation count, and the running sum.
func (h *histogram) snapshot() ([]int64, int64, float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cum := make([]int64, len(h.counts))
	var running int64
	for i, c := range h.counts {
		running += c
		cum[i] = running
	}
	return cum, h.total, h.sum
}

// histogramVec is a histogram family keyed by a label value.
type histogramVec struct {
	mu     sync.Mutex
	bounds []float64
	items  map[string]*histogram
}

func newHistogramVec(bounds []float64) *histogramVec {
	return &histogramVec{bounds: bounds, items: make(map[string]*histogram)}
}

func (v *histogramVec) with(label string) *histogram {
	v.mu.Lock()
	defer v.mu.Unlock()
	h, ok := v.items[label]
	if !ok {
		h = newHistogram(v.bounds)
		v.items[label] = h
	}
	return h
}

// peek returns the histogram for a label without creating one.
func (v *histogramVec) peek(label string) *histogram {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.items[label]
}

func (v *histogramVec) labels() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.items))
	for label := range v.items {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// counterSet is a map of named monotonic counters, also used for gauges
// via set.
type counterSet struct {
	mu     sync.Mutex
	values map[string]int64
}

func newCounterSet() *counterSet {
	return &counterSet{values: make(map[string]int64)}
}

func (s *counterSet) add(key string, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] += delta
}

func (s *counterSet) set(key string, v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = v
}

func (s *counterSet) get(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

func (s *counterSet) snapshot() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// counterKey joins a metric name with its label values.
func counterKey(name string, labels ...string) string {
	if len(labels) == 0 {
		return name
	}
	return name + "|" + strings.Join(labels, "|")
}

func writeHeader(b *strings.Builder, name, typ, help string) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, typ)
}

// writeHistogram writes one histogram series in Prometheus exposition
// format. labels is the pre-rendered label pairs without the le label, or
// empty.
func writeHistogram(b *strings.Builder, name, labels string, h *histogram) {
	cum, total, sum := h.snapshot()
	for i, bound := range h.bounds {
		if labels == "" {
			fmt.Fprintf(b, "%s_bucket{le=\"%g\"} %d\n", name, bound, cum[i])
		} else {
			fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, bound, cum[i])
		}
	}
	if labels == "" {
		fmt.Fprintf(b, "%s_bucket{le=\"+Inf\"} %d\n", name, total)
		fmt.Fprintf(b, "%s_sum %g\n", name, sum)
		fmt.Fprintf(b, "%s_count %d\n", name, total)
		return
	}
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, total)
	fmt.Fprintf(b, "%s_sum{%s} %g\n", name, labels, sum)
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, total)
}
