package expfmt

import (
	"math"
	"strings"
	"testing"

	"github.com/nicktill/procmet/pkg/metrics"
)

func TestWrite_RendersFamilies(t *testing.T) {
	families := []*metrics.Family{
		{
			Name: "requests_total",
			Help: "Requests served.",
			Type: metrics.CounterType,
			Samples: []metrics.Sample{
				{Name: "requests_total", Labels: map[string]string{"path": "/api", "code": "200"}, Value: 3},
				{Name: "requests_total", Labels: map[string]string{"path": "/api", "code": "500"}, Value: 0.5},
			},
		},
		{
			Name: "up",
			Type: metrics.GaugeType,
			Samples: []metrics.Sample{
				{Name: "up", Value: 1},
			},
		},
	}

	var b strings.Builder
	if err := Write(&b, families); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	want := "# HELP requests_total Requests served.\n" +
		"# TYPE requests_total counter\n" +
		`requests_total{code="200",path="/api"} 3` + "\n" +
		`requests_total{code="500",path="/api"} 0.5` + "\n" +
		"# TYPE up gauge\n" +
		"up 1\n"
	if got := b.String(); got != want {
		t.Errorf("rendered output:\n%s\nwant:\n%s", got, want)
	}
}

func TestWrite_SpecialValues(t *testing.T) {
	families := []*metrics.Family{{
		Name: "latency_bucket_edge",
		Type: metrics.HistogramType,
		Samples: []metrics.Sample{
			{Name: "latency_bucket_edge", Labels: map[string]string{"le": "+Inf"}, Value: math.Inf(+1)},
			{Name: "latency_bucket_edge", Value: math.NaN()},
		},
	}}

	var b strings.Builder
	if err := Write(&b, families); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := b.String()
	if !strings.Contains(out, `latency_bucket_edge{le="+Inf"} +Inf`) {
		t.Errorf("missing +Inf rendering in:\n%s", out)
	}
	if !strings.Contains(out, "latency_bucket_edge NaN") {
		t.Errorf("missing NaN rendering in:\n%s", out)
	}
}

func TestWrite_EscapesLabelValuesAndHelp(t *testing.T) {
	families := []*metrics.Family{{
		Name: "weird",
		Help: "line one\nline \\two",
		Type: metrics.GaugeType,
		Samples: []metrics.Sample{
			{Name: "weird", Labels: map[string]string{"q": "say \"hi\"\nback\\slash"}, Value: 1},
		},
	}}

	var b strings.Builder
	if err := Write(&b, families); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := b.String()
	if !strings.Contains(out, `# HELP weird line one\nline \\two`) {
		t.Errorf("help not escaped in:\n%s", out)
	}
	if !strings.Contains(out, `weird{q="say \"hi\"\nback\\slash"} 1`) {
		t.Errorf("label value not escaped in:\n%s", out)
	}
}
