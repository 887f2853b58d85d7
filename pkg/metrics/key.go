package metrics

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Key is the decoded form of a store key: one logical data point inside one
// store file. The on-disk encoding is a JSON array
// [metric_name, sample_name, [label names...], [label values...]].
type Key struct {
	Metric      string
	Sample      string
	LabelNames  []string
	LabelValues []string
}

// EncodeKey builds the canonical store key for a sample. Label names are
// sorted so the same label set always produces the same key.
func EncodeKey(metric, sample string, labels map[string]string) string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]string, len(names))
	for i, name := range names {
		values[i] = labels[name]
	}

	return Key{Metric: metric, Sample: sample, LabelNames: names, LabelValues: values}.Encode()
}

// Encode renders the key into its canonical textual form.
func (k Key) Encode() string {
	names := k.LabelNames
	values := k.LabelValues
	if names == nil {
		names = []string{}
	}
	if values == nil {
		values = []string{}
	}

	// The four fields marshal without error: strings and string slices only.
	raw, _ := json.Marshal([]interface{}{k.Metric, k.Sample, names, values})
	return string(raw)
}

// DecodeKey parses a canonical store key.
func DecodeKey(s string) (Key, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(s), &parts); err != nil {
		return Key{}, fmt.Errorf("decode sample key %q: %w", s, err)
	}
	if len(parts) != 4 {
		return Key{}, fmt.Errorf("decode sample key %q: want 4 fields, got %d", s, len(parts))
	}

	var k Key
	if err := json.Unmarshal(parts[0], &k.Metric); err != nil {
		return Key{}, fmt.Errorf("decode sample key metric name: %w", err)
	}
	if err := json.Unmarshal(parts[1], &k.Sample); err != nil {
		return Key{}, fmt.Errorf("decode sample key sample name: %w", err)
	}
	if err := json.Unmarshal(parts[2], &k.LabelNames); err != nil {
		return Key{}, fmt.Errorf("decode sample key label names: %w", err)
	}
	if err := json.Unmarshal(parts[3], &k.LabelValues); err != nil {
		return Key{}, fmt.Errorf("decode sample key label values: %w", err)
	}
	if len(k.LabelNames) != len(k.LabelValues) {
		return Key{}, fmt.Errorf("decode sample key %q: %d label names vs %d values",
			s, len(k.LabelNames), len(k.LabelValues))
	}
	return k, nil
}

// Labels materializes the key's label pairs as a map.
func (k Key) Labels() map[string]string {
	labels := make(map[string]string, len(k.LabelNames))
	for i, name := range k.LabelNames {
		labels[name] = k.LabelValues[i]
	}
	return labels
}

// WithLabel returns a copy of the key with one extra label appended.
func (k Key) WithLabel(name, value string) Key {
	out := Key{
		Metric:      k.Metric,
		Sample:      k.Sample,
		LabelNames:  append(append([]string{}, k.LabelNames...), name),
		LabelValues: append(append([]string{}, k.LabelValues...), value),
	}
	return out
}
