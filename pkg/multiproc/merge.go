package multiproc

import (
	"sort"
	"strconv"

	"github.com/nicktill/procmet/pkg/metrics"
)

// bucketLabel is the histogram threshold label.
const bucketLabel = "le"

// pidLabel is the synthetic label distinguishing per-process gauge rows.
const pidLabel = "pid"

// sampleSet accumulates merged samples keyed by (sample name, label set),
// remembering first-seen order.
type sampleSet struct {
	merged map[string]metrics.Sample
	order  []string
}

func newSampleSet() *sampleSet {
	return &sampleSet{merged: make(map[string]metrics.Sample)}
}

func (ss *sampleSet) key(s metrics.Sample) string {
	k := metrics.EncodeKey("", s.Name, s.Labels)
	if _, ok := ss.merged[k]; !ok {
		ss.order = append(ss.order, k)
	}
	return k
}

// put replaces any existing sample for the same key.
func (ss *sampleSet) put(s metrics.Sample) {
	ss.merged[ss.key(s)] = s
}

// add sums into any existing sample for the same key, starting from zero.
func (ss *sampleSet) add(s metrics.Sample) {
	k := ss.key(s)
	if cur, ok := ss.merged[k]; ok {
		s.Value += cur.Value
	}
	ss.merged[k] = s
}

// min keeps the smaller of the existing and incoming value. An absent key
// adopts the incoming value, never a zero default.
func (ss *sampleSet) min(s metrics.Sample) {
	k := ss.key(s)
	if cur, ok := ss.merged[k]; ok && cur.Value <= s.Value {
		return
	}
	ss.merged[k] = s
}

// max is the symmetric maximum.
func (ss *sampleSet) max(s metrics.Sample) {
	k := ss.key(s)
	if cur, ok := ss.merged[k]; ok && cur.Value >= s.Value {
		return
	}
	ss.merged[k] = s
}

func (ss *sampleSet) list() []metrics.Sample {
	out := make([]metrics.Sample, 0, len(ss.order))
	for _, k := range ss.order {
		out = append(out, ss.merged[k])
	}
	return out
}

// reconcile collapses a family's raw per-file samples into its final exposed
// samples. Every merge here is commutative and associative, so file scan
// order never changes the result. Runs on in-memory data only, outside the
// coordination lock.
func reconcile(fam *metrics.Family) {
	set := newSampleSet()

	// Histogram bucket increments, grouped by the label set without le.
	bucketIncs := make(map[string]map[float64]float64)
	bucketGroups := make(map[string]map[string]string)
	bucketOrder := []string{}

	for _, s := range fam.Samples {
		switch fam.Type {
		case metrics.GaugeType:
			switch fam.Mode {
			case metrics.GaugeModeMin:
				s.Labels = stripLabel(s.Labels, pidLabel)
				set.min(s)
			case metrics.GaugeModeMax:
				s.Labels = stripLabel(s.Labels, pidLabel)
				set.max(s)
			case metrics.GaugeModeLiveSum:
				s.Labels = stripLabel(s.Labels, pidLabel)
				set.add(s)
			default:
				// all / liveall: every per-process row stays its own series.
				set.put(s)
			}

		case metrics.HistogramType:
			threshold, isBucket := bucketThreshold(s.Labels)
			if !isBucket {
				// _sum / _count raw data: plain cross-file sum.
				set.add(s)
				continue
			}
			group := stripLabel(s.Labels, bucketLabel)
			gk := metrics.EncodeKey("", "", group)
			if bucketIncs[gk] == nil {
				bucketIncs[gk] = make(map[float64]float64)
				bucketGroups[gk] = group
				bucketOrder = append(bucketOrder, gk)
			}
			bucketIncs[gk][threshold] += s.Value

		default: // counter, summary
			set.add(s)
		}
	}

	// Rebuild cumulative buckets: per group, ascending thresholds, each
	// exposed count the sum of all increments at or below it. The _count
	// sample is the cumulative total at the top threshold; it replaces any
	// raw _count rows summed above.
	for _, gk := range bucketOrder {
		incs := bucketIncs[gk]
		thresholds := make([]float64, 0, len(incs))
		for t := range incs {
			thresholds = append(thresholds, t)
		}
		sort.Float64s(thresholds)

		acc := 0.0
		for _, t := range thresholds {
			acc += incs[t]
			labels := cloneLabels(bucketGroups[gk])
			labels[bucketLabel] = metrics.FormatValue(t)
			set.put(metrics.Sample{Name: fam.Name + "_bucket", Labels: labels, Value: acc})
		}
		set.put(metrics.Sample{Name: fam.Name + "_count", Labels: bucketGroups[gk], Value: acc})
	}

	out := set.list()
	sortSamples(out)
	fam.Samples = out
}

// bucketThreshold extracts the numeric le threshold, when present and
// parseable. A malformed le value demotes the row to plain summing rather
// than poisoning the whole scrape.
func bucketThreshold(labels map[string]string) (float64, bool) {
	raw, ok := labels[bucketLabel]
	if !ok {
		return 0, false
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return t, true
}

func stripLabel(labels map[string]string, name string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		if k != name {
			out[k] = v
		}
	}
	return out
}

func cloneLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// sortSamples orders samples deterministically: sample name first, then the
// canonical label encoding. The merge itself is order-independent; sorting
// keeps exposition output stable across scrapes.
func sortSamples(samples []metrics.Sample) {
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return metrics.EncodeKey("", "", samples[i].Labels) < metrics.EncodeKey("", "", samples[j].Labels)
	})
}
