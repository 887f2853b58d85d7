package metrics

// MetricType represents the type of metric
type MetricType string

const (
	CounterType   MetricType = "counter"
	GaugeType     MetricType = "gauge"
	HistogramType MetricType = "histogram"
	SummaryType   MetricType = "summary"
)

// ParseMetricType parses a metric type token (as embedded in store
// filenames). Returns false for anything it does not recognize.
func ParseMetricType(s string) (MetricType, bool) {
	switch MetricType(s) {
	case CounterType, GaugeType, HistogramType, SummaryType:
		return MetricType(s), true
	}
	return "", false
}

// GaugeMode governs how per-process gauge values reconcile into exposed
// series when multiple processes report the same gauge.
type GaugeMode string

const (
	// GaugeModeMin keeps the minimum value across processes.
	GaugeModeMin GaugeMode = "min"
	// GaugeModeMax keeps the maximum value across processes.
	GaugeModeMax GaugeMode = "max"
	// GaugeModeLiveSum sums values across currently live processes.
	GaugeModeLiveSum GaugeMode = "livesum"
	// GaugeModeAll keeps every process's value as its own series,
	// tagged with a pid label. Survives process death via the archive.
	GaugeModeAll GaugeMode = "all"
	// GaugeModeLiveAll is GaugeModeAll restricted to live processes.
	GaugeModeLiveAll GaugeMode = "liveall"
)

// ParseGaugeMode parses a gauge mode token. An empty or unrecognized mode
// deliberately falls back to GaugeModeAll: keeping rows distinct is the only
// reconciliation that never loses data, so it is the documented default.
func ParseGaugeMode(s string) GaugeMode {
	switch GaugeMode(s) {
	case GaugeModeMin, GaugeModeMax, GaugeModeLiveSum, GaugeModeLiveAll:
		return GaugeMode(s)
	}
	return GaugeModeAll
}

// Live reports whether the mode describes live-process-only state. Store
// files for live modes are deleted rather than archived when their owning
// process dies.
func (m GaugeMode) Live() bool {
	return m == GaugeModeLiveSum || m == GaugeModeLiveAll
}

// Sample is one exposed data point: a sample name (the metric name plus an
// optional suffix such as _bucket or _count), a label set, and a value.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// Family is one reconciled metric: the aggregate of every process's samples
// for a single metric name. Families are built fresh on every collection and
// never persisted.
type Family struct {
	Name    string
	Help    string
	Type    MetricType
	Mode    GaugeMode // meaningful only when Type == GaugeType
	Samples []Sample
}
