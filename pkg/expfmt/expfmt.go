// Package expfmt renders collected metric families into the Prometheus
// text exposition format.
package expfmt

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/nicktill/procmet/pkg/metrics"
)

// Write renders families in the text exposition format: a # HELP and # TYPE
// line per family, then one line per sample with labels in sorted order.
// Families are rendered in the order given; Collector output is already
// sorted by name.
func Write(w io.Writer, families []*metrics.Family) error {
	bw := bufio.NewWriter(w)
	for _, fam := range families {
		if fam.Help != "" {
			fmt.Fprintf(bw, "# HELP %s %s\n", fam.Name, escapeHelp(fam.Help))
		}
		fmt.Fprintf(bw, "# TYPE %s %s\n", fam.Name, fam.Type)
		for _, s := range fam.Samples {
			fmt.Fprintf(bw, "%s%s %s\n", s.Name, formatLabels(s.Labels), metrics.FormatValue(s.Value))
		}
	}
	return bw.Flush()
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(name)
		b.WriteString(`="`)
		b.WriteString(escapeLabelValue(labels[name]))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func escapeLabelValue(v string) string {
	return labelEscaper.Replace(v)
}

func escapeHelp(v string) string {
	return helpEscaper.Replace(v)
}
