package extractors

import (
	"math"
	"sort"

	"github.com/faultlinehq/faultline/internal/models"
)

const maxSampleTraces = 5

// Percentile returns the p-th percentile of values using linear
// interpolation between the two nearest ranks. The second return is false
// when values is empty; p at or below 0 yields the minimum and p at or
// above 100 the maximum.
func Percentile(values []float64, p float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	xs := append([]float64(nil), values...)
	sort.Float64s(xs)
	if p <= 0 {
		return xs[0], true
	}
	if p >= 100 {
		return xs[len(xs)-1], true
	}
	k := float64(len(xs)-1) * (p / 100.0)
	f := math.Floor(k)
	c := math.Ceil(k)
	if f == c {
		return xs[int(k)], true
	}
	return xs[int(f)]*(c-k) + xs[int(c)]*(k-f), true
}

func percentileOrNil(values []float64, p float64) *float64 {
	v, ok := Percentile(values, p)
	if !ok {
		return nil
	}
	return &v
}

// EndpointGroup pairs a resource name with its aggregated window stats.
type EndpointGroup struct {
	Resource string
	Stats    models.EndpointStats
}

// DependencyGroup pairs a dependency key with its aggregated window stats.
type DependencyGroup struct {
	Dependency string
	Stats      models.DependencyStats
}

// DependencyKey names the downstream target of a client span, preferring
// the peer service, then the span type, then the operation name. Empty
// means the span carries nothing usable.
func DependencyKey(s models.SpanView) string {
	switch {
	case s.PeerService != "":
		return "peer_service:" + s.PeerService
	case s.SpanType != "":
		return "type:" + s.SpanType
	case s.Name != "":
		return "name:" + s.Name
	default:
		return ""
	}
}

// GroupEndpointStats aggregates spans per resource, keeping resources in
// first-seen order. Spans without a resource are dropped.
func GroupEndpointStats(spans []models.SpanView) []EndpointGroup {
	order, groups := groupSpans(spans, func(s models.SpanView) string { return s.Resource })

	out := make([]EndpointGroup, 0, len(order))
	for _, res := range order {
		group := groups[res]
		durations, errCount, traceIDs := aggregateGroup(group)
		out = append(out, EndpointGroup{Resource: res, Stats: models.EndpointStats{
			Count:          len(group),
			ErrorCount:     errCount,
			ErrorRate:      float64(errCount) / float64(len(group)),
			P50Ms:          percentileOrNil(durations, 50),
			P95Ms:          percentileOrNil(durations, 95),
			P99Ms:          percentileOrNil(durations, 99),
			SampleTraceIDs: traceIDs,
		}})
	}
	return out
}

// GroupDependencyStats aggregates spans per dependency key in first-seen
// order. Spans that resolve to no key are dropped.
func GroupDependencyStats(spans []models.SpanView) []DependencyGroup {
	order, groups := groupSpans(spans, DependencyKey)

	out := make([]DependencyGroup, 0, len(order))
	for _, dep := range order {
		group := groups[dep]
		durations, errCount, traceIDs := aggregateGroup(group)

		var total *float64
		if len(durations) > 0 {
			sum := 0.0
			for _, d := range durations {
				sum += d
			}
			total = &sum
		}
		out = append(out, DependencyGroup{Dependency: dep, Stats: models.DependencyStats{
			Count:           len(group),
			ErrorCount:      errCount,
			ErrorRate:       float64(errCount) / float64(len(group)),
			TotalDurationMs: total,
			P95Ms:           percentileOrNil(durations, 95),
			SampleTraceIDs:  traceIDs,
		}})
	}
	return out
}

func groupSpans(spans []models.SpanView, keyOf func(models.SpanView) string) ([]string, map[string][]models.SpanView) {
	var order []string
	groups := make(map[string][]models.SpanView)
	for _, s := range spans {
		key := keyOf(s)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], s)
	}
	return order, groups
}

func aggregateGroup(group []models.SpanView) (durations []float64, errCount int, traceIDs []string) {
	traceIDs = []string{}
	for _, s := range group {
		if s.DurationMs != nil {
			durations = append(durations, *s.DurationMs)
		}
		if s.Error != nil && *s.Error {
			errCount++
		}
		if s.TraceID != "" && len(traceIDs) < maxSampleTraces {
			traceIDs = append(traceIDs, s.TraceID)
		}
	}
	return durations, errCount, traceIDs
}
