package sdk

import (
	"github.com/nicktill/procmet/pkg/metrics"
)

// Counter is a monotonically increasing metric.
type Counter struct {
	name string
	reg  *Registry
}

// Inc increments the counter by 1.
func (c *Counter) Inc(labels ...string) error {
	return c.Add(1, labels...)
}

// Add adds value to the counter. Negative values are rejected; counters only
// increase.
func (c *Counter) Add(value float64, labels ...string) error {
	if value < 0 {
		return nil
	}
	key := metrics.EncodeKey(c.name, c.name, makeLabels(labels...))
	return c.reg.add(c.reg.id(metrics.CounterType, ""), key, value)
}
