package metrics

import (
	"math"
	"strconv"
)

// FormatValue renders a float the way the text exposition format expects:
// integral values without a fractional part ("1", not "1.0"), shortest
// round-trippable form otherwise, and the +Inf/-Inf/NaN spellings for the
// special values. Histogram bucket thresholds use the same rendering so the
// le label value is canonical.
func FormatValue(v float64) string {
	switch {
	case math.IsInf(v, +1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
