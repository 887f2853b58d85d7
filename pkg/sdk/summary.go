package sdk

import (
	"github.com/nicktill/procmet/pkg/metrics"
)

// Summary tracks the sum and count of observed values. Quantiles are not
// persisted: they cannot be merged across processes.
type Summary struct {
	name string
	reg  *Registry
}

// Observe records one value.
func (s *Summary) Observe(value float64, labels ...string) error {
	labelMap := makeLabels(labels...)
	id := s.reg.id(metrics.SummaryType, "")

	if err := s.reg.add(id, metrics.EncodeKey(s.name, s.name+"_sum", labelMap), value); err != nil {
		return err
	}
	return s.reg.add(id, metrics.EncodeKey(s.name, s.name+"_count", labelMap), 1)
}
