package sdk_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicktill/procmet/pkg/lockfile"
	"github.com/nicktill/procmet/pkg/metrics"
	"github.com/nicktill/procmet/pkg/multiproc"
	"github.com/nicktill/procmet/pkg/sdk"
)

// collect scrapes a test directory back into families, the way the exporter
// side would.
func collect(t *testing.T, dir string) []*metrics.Family {
	t.Helper()
	lock := lockfile.New(filepath.Join(dir, multiproc.DefaultLockFile))
	c, err := multiproc.NewCollector(dir, lock)
	require.NoError(t, err)
	families, err := c.Collect(context.Background())
	require.NoError(t, err)
	return families
}

func findFamily(t *testing.T, families []*metrics.Family, name string) *metrics.Family {
	t.Helper()
	for _, fam := range families {
		if fam.Name == name {
			return fam
		}
	}
	t.Fatalf("family %q not collected", name)
	return nil
}

func TestCounter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	reg, err := sdk.NewRegistryForPID(dir, 100)
	require.NoError(t, err)

	requests := reg.NewCounter("requests_total")
	require.NoError(t, requests.Inc("path", "/api"))
	require.NoError(t, requests.Add(2.5, "path", "/api"))
	require.NoError(t, requests.Inc("path", "/health"))
	require.NoError(t, requests.Add(-1, "path", "/api"), "negative add is a no-op")
	require.NoError(t, reg.Close())

	fam := findFamily(t, collect(t, dir), "requests_total")
	require.Equal(t, metrics.CounterType, fam.Type)
	require.Len(t, fam.Samples, 2)

	byPath := map[string]float64{}
	for _, s := range fam.Samples {
		byPath[s.Labels["path"]] = s.Value
	}
	require.Equal(t, map[string]float64{"/api": 3.5, "/health": 1}, byPath)
}

func TestCounter_SumsAcrossRegistries(t *testing.T) {
	dir := t.TempDir()
	for _, pid := range []int{100, 101} {
		reg, err := sdk.NewRegistryForPID(dir, pid)
		require.NoError(t, err)
		require.NoError(t, reg.NewCounter("requests_total").Add(2))
		require.NoError(t, reg.Close())
	}

	fam := findFamily(t, collect(t, dir), "requests_total")
	require.Len(t, fam.Samples, 1)
	require.Equal(t, 4.0, fam.Samples[0].Value)
}

func TestGauge_ModesWriteDistinctFiles(t *testing.T) {
	dir := t.TempDir()
	reg, err := sdk.NewRegistryForPID(dir, 100)
	require.NoError(t, err)

	require.NoError(t, reg.NewGauge("depth", metrics.GaugeModeMax).Set(7))
	require.NoError(t, reg.NewGauge("conns", metrics.GaugeModeLiveSum).Set(3))
	require.NoError(t, reg.Close())

	_, err = os.Stat(filepath.Join(dir, "gauge_max_100.db"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "gauge_livesum_100.db"))
	require.NoError(t, err)
}

func TestGauge_SetAndArithmetic(t *testing.T) {
	dir := t.TempDir()
	reg, err := sdk.NewRegistryForPID(dir, 100)
	require.NoError(t, err)

	depth := reg.NewGauge("depth", metrics.GaugeModeAll)
	require.NoError(t, depth.Set(10))
	require.NoError(t, depth.Inc())
	require.NoError(t, depth.Add(4))
	require.NoError(t, depth.Dec())
	require.NoError(t, depth.Sub(2))
	require.NoError(t, reg.Close())

	fam := findFamily(t, collect(t, dir), "depth")
	require.Equal(t, metrics.GaugeModeAll, fam.Mode)
	require.Len(t, fam.Samples, 1)
	require.Equal(t, 12.0, fam.Samples[0].Value)
	require.Equal(t, "100", fam.Samples[0].Labels["pid"])
}

func TestHistogram_ObservationsReconstruct(t *testing.T) {
	dir := t.TempDir()
	reg, err := sdk.NewRegistryForPID(dir, 100)
	require.NoError(t, err)

	latency := reg.NewHistogram("latency_seconds", []float64{1, 5})
	require.NoError(t, latency.Observe(0.5)) // le=1
	require.NoError(t, latency.Observe(3))   // le=5
	require.NoError(t, latency.Observe(99))  // le=+Inf, appended bound
	require.NoError(t, reg.Close())

	fam := findFamily(t, collect(t, dir), "latency_seconds")
	require.Equal(t, metrics.HistogramType, fam.Type)

	buckets := map[string]float64{}
	var count, sum float64
	for _, s := range fam.Samples {
		switch s.Name {
		case "latency_seconds_bucket":
			buckets[s.Labels["le"]] = s.Value
		case "latency_seconds_count":
			count = s.Value
		case "latency_seconds_sum":
			sum = s.Value
		}
	}
	require.Equal(t, map[string]float64{"1": 1, "5": 2, "+Inf": 3}, buckets)
	require.Equal(t, 3.0, count)
	require.InDelta(t, 102.5, sum, 1e-9)
}

func TestSummary_SumAndCount(t *testing.T) {
	dir := t.TempDir()
	reg, err := sdk.NewRegistryForPID(dir, 100)
	require.NoError(t, err)

	s := reg.NewSummary("rpc_seconds")
	require.NoError(t, s.Observe(0.25))
	require.NoError(t, s.Observe(0.75))
	require.NoError(t, reg.Close())

	fam := findFamily(t, collect(t, dir), "rpc_seconds")
	require.Equal(t, metrics.SummaryType, fam.Type)
	require.Len(t, fam.Samples, 2)

	byName := map[string]float64{}
	for _, smp := range fam.Samples {
		byName[smp.Name] = smp.Value
	}
	require.Equal(t, 2.0, byName["rpc_seconds_count"])
	require.InDelta(t, 1.0, byName["rpc_seconds_sum"], 1e-9)
}

func TestNewRegistry_RequiresDirectory(t *testing.T) {
	_, err := sdk.NewRegistryForPID(filepath.Join(t.TempDir(), "missing"), 1)
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "afile")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = sdk.NewRegistryForPID(file, 1)
	require.Error(t, err)
}

func TestRegistry_ValuesSurviveReopen(t *testing.T) {
	dir := t.TempDir()

	reg, err := sdk.NewRegistryForPID(dir, 100)
	require.NoError(t, err)
	require.NoError(t, reg.NewCounter("requests_total").Add(3))
	require.NoError(t, reg.Close())

	// The same process restarting resumes its own totals.
	reg2, err := sdk.NewRegistryForPID(dir, 100)
	require.NoError(t, err)
	require.NoError(t, reg2.NewCounter("requests_total").Add(4))
	require.NoError(t, reg2.Close())

	fam := findFamily(t, collect(t, dir), "requests_total")
	require.Equal(t, 7.0, fam.Samples[0].Value)
}
