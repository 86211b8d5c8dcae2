// Package metrics renders the domain's own Prometheus-style text
// exposition from counters and histograms persisted in the store,
// independent of the ambient process metrics prometheus/client_golang
// collects (see process.go).
package metrics

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pytake/taskqueue/internal/store"
)

// DefaultBuckets are the histogram bucket boundaries applied when a
// caller doesn't supply its own, matching the original's DEFAULT_BUCKETS.
var DefaultBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// Sink persists counters and histograms into the store as hash
// increments, then renders them back out as Prometheus text exposition.
type Sink struct {
	db store.Store
}

// NewSink constructs a Sink over the given store.
func NewSink(db store.Store) *Sink {
	return &Sink{db: db}
}

func encodeLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, labels[k])
	}
	return strings.Join(parts, ",")
}

func promKV(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf(`%s="%s"`, k, labels[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// IncCounter adds 1 to a named counter's value for the given label set.
// It returns nothing: a store error from the increment is discarded.
func (s *Sink) IncCounter(ctx context.Context, name string, labels map[string]string) {
	field := encodeLabels(labels)
	_, _ = s.db.HashIncrByFloat(ctx, "metrics:counter:"+name, field, 1.0)
}

// ObserveHistogram records a single observation into a histogram's
// cumulative buckets, sum, and count, pipelined into one round trip.
func (s *Sink) ObserveHistogram(ctx context.Context, name string, labels map[string]string, value float64, buckets []float64) {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)

	labelKey := encodeLabels(labels)
	bucketKey := "metrics:hist:" + name + ":buckets"
	sumKey := "metrics:hist:" + name + ":sum"
	countKey := "metrics:hist:" + name + ":count"

	_ = s.db.Pipeline(ctx, func(p store.Pipeliner) {
		for _, b := range sorted {
			if value <= b {
				field := fmt.Sprintf("%s|le=%s", labelKey, formatBucketBound(b))
				p.HashIncrByFloat(bucketKey, field, 1.0)
			}
		}
		p.HashIncrByFloat(bucketKey, labelKey+"|le=+Inf", 1.0)
		p.HashIncrByFloat(sumKey, labelKey, value)
		p.HashIncrByFloat(countKey, labelKey, 1.0)
	})
}

func formatBucketBound(b float64) string {
	return strconv.FormatFloat(b, 'f', -1, 64)
}

func parseLabelString(s string) map[string]string {
	labels := map[string]string{}
	if s == "" {
		return labels
	}
	for _, pair := range strings.Split(s, ",") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			labels[kv[0]] = kv[1]
		}
	}
	return labels
}

// Render produces the full Prometheus text exposition: every persisted
// counter, then every persisted histogram's buckets/sum/count,
// reproducing render_prometheus's two-pass shape.
func (s *Sink) Render(ctx context.Context) (string, error) {
	var b strings.Builder

	counterKeys, err := s.db.Keys(ctx, "metrics:counter:*")
	if err != nil {
		return "", fmt.Errorf("metrics: list counters: %w", err)
	}
	sort.Strings(counterKeys)
	for _, key := range counterKeys {
		name := strings.TrimPrefix(key, "metrics:counter:")
		items, err := s.db.HashGetAll(ctx, key)
		if err != nil {
			return "", fmt.Errorf("metrics: read counter %s: %w", key, err)
		}
		fmt.Fprintf(&b, "# TYPE %s counter\n", name)
		fields := sortedKeys(items)
		for _, field := range fields {
			val := items[field]
			labels := parseLabelString(field)
			f, _ := strconv.ParseFloat(val, 64)
			fmt.Fprintf(&b, "%s%s %v\n", name, promKV(labels), f)
		}
	}

	bucketKeys, err := s.db.Keys(ctx, "metrics:hist:*:buckets")
	if err != nil {
		return "", fmt.Errorf("metrics: list histogram buckets: %w", err)
	}
	sort.Strings(bucketKeys)
	for _, bucketKey := range bucketKeys {
		name := strings.TrimSuffix(strings.TrimPrefix(bucketKey, "metrics:hist:"), ":buckets")
		sumKey := "metrics:hist:" + name + ":sum"
		countKey := "metrics:hist:" + name + ":count"

		buckets, err := s.db.HashGetAll(ctx, bucketKey)
		if err != nil {
			return "", fmt.Errorf("metrics: read histogram buckets %s: %w", bucketKey, err)
		}
		sums, err := s.db.HashGetAll(ctx, sumKey)
		if err != nil {
			return "", fmt.Errorf("metrics: read histogram sums %s: %w", sumKey, err)
		}
		counts, err := s.db.HashGetAll(ctx, countKey)
		if err != nil {
			return "", fmt.Errorf("metrics: read histogram counts %s: %w", countKey, err)
		}

		fmt.Fprintf(&b, "# TYPE %s_bucket histogram\n", name)

		group := map[string]map[string]float64{}
		for field, countStr := range buckets {
			idx := strings.Index(field, "|le=")
			if idx < 0 {
				continue
			}
			base, le := field[:idx], field[idx+4:]
			if group[base] == nil {
				group[base] = map[string]float64{}
			}
			f, _ := strconv.ParseFloat(countStr, 64)
			group[base][le] = f
		}

		bases := sortedKeys(group)
		for _, base := range bases {
			leMap := group[base]
			labels := parseLabelString(base)

			var nums []float64
			for le := range leMap {
				if le == "+Inf" {
					continue
				}
				if f, err := strconv.ParseFloat(le, 64); err == nil {
					nums = append(nums, f)
				}
			}
			sort.Float64s(nums)

			for _, n := range nums {
				out := cloneLabels(labels)
				out["le"] = formatBucketBound(n)
				fmt.Fprintf(&b, "%s_bucket%s %v\n", name, promKV(out), leMap[formatBucketBound(n)])
			}
			out := cloneLabels(labels)
			out["le"] = "+Inf"
			fmt.Fprintf(&b, "%s_bucket%s %v\n", name, promKV(out), leMap["+Inf"])

			totalCount := counts[base]
			totalSum := sums[base]
			cf, _ := strconv.ParseFloat(totalCount, 64)
			sf, _ := strconv.ParseFloat(totalSum, 64)
			fmt.Fprintf(&b, "# TYPE %s_count counter\n", name)
			fmt.Fprintf(&b, "%s_count%s %v\n", name, promKV(labels), cf)
			fmt.Fprintf(&b, "# TYPE %s_sum counter\n", name)
			fmt.Fprintf(&b, "%s_sum%s %v\n", name, promKV(labels), sf)
		}
	}

	return b.String(), nil
}

func sortedKeys(m interface{}) []string {
	var keys []string
	switch t := m.(type) {
	case map[string]string:
		for k := range t {
			keys = append(keys, k)
		}
	case map[string]map[string]float64:
		for k := range t {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func cloneLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	return out
}
