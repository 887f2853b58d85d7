package sdk

import (
	"github.com/nicktill/procmet/pkg/metrics"
	"github.com/nicktill/procmet/pkg/multiproc"
)

// Gauge is a metric that can go up and down. Its multiprocess mode decides
// how the per-process values reconcile at collection time and whether the
// store file survives process death.
type Gauge struct {
	name string
	mode metrics.GaugeMode
	reg  *Registry
}

// Set sets the gauge to value.
func (g *Gauge) Set(value float64, labels ...string) error {
	return g.reg.set(g.id(), g.key(labels...), value)
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc(labels ...string) error {
	return g.Add(1, labels...)
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec(labels ...string) error {
	return g.Add(-1, labels...)
}

// Add adds value to the gauge.
func (g *Gauge) Add(value float64, labels ...string) error {
	return g.reg.add(g.id(), g.key(labels...), value)
}

// Sub subtracts value from the gauge.
func (g *Gauge) Sub(value float64, labels ...string) error {
	return g.Add(-value, labels...)
}

func (g *Gauge) id() multiproc.StoreID {
	return g.reg.id(metrics.GaugeType, g.mode)
}

func (g *Gauge) key(labels ...string) string {
	return metrics.EncodeKey(g.name, g.name, makeLabels(labels...))
}
