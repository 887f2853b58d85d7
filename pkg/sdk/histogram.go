package sdk

import (
	"math"
	"sort"

	"github.com/nicktill/procmet/pkg/metrics"
	"github.com/nicktill/procmet/pkg/multiproc"
)

// DefaultBuckets covers typical HTTP request latencies, 1ms to 10s.
var DefaultBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// Histogram tracks the distribution of observed values in fixed buckets.
//
// Each observation increments exactly one bucket row in the store: the
// smallest bound the value fits under. Cumulative counts are reconstructed
// at collection time, after per-bucket increments from every process have
// been summed, so the stored rows stay mergeable by plain addition.
type Histogram struct {
	name    string
	buckets []float64 // sorted, last is +Inf
	reg     *Registry
}

func newHistogram(name string, buckets []float64, reg *Registry) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	sorted := make([]float64, len(buckets))
	copy(sorted, buckets)
	sort.Float64s(sorted)
	if len(sorted) == 0 || !math.IsInf(sorted[len(sorted)-1], +1) {
		sorted = append(sorted, math.Inf(+1))
	}
	return &Histogram{name: name, buckets: sorted, reg: reg}
}

// Observe records one value: one bucket increment plus the running sum and
// count.
func (h *Histogram) Observe(value float64, labels ...string) error {
	labelMap := makeLabels(labels...)
	id := h.id()

	bound := h.buckets[len(h.buckets)-1]
	for _, b := range h.buckets {
		if value <= b {
			bound = b
			break
		}
	}

	bucketLabels := make(map[string]string, len(labelMap)+1)
	for k, v := range labelMap {
		bucketLabels[k] = v
	}
	bucketLabels["le"] = metrics.FormatValue(bound)

	if err := h.reg.add(id, metrics.EncodeKey(h.name, h.name+"_bucket", bucketLabels), 1); err != nil {
		return err
	}
	if err := h.reg.add(id, metrics.EncodeKey(h.name, h.name+"_sum", labelMap), value); err != nil {
		return err
	}
	return h.reg.add(id, metrics.EncodeKey(h.name, h.name+"_count", labelMap), 1)
}

func (h *Histogram) id() multiproc.StoreID {
	return h.reg.id(metrics.HistogramType, "")
}
