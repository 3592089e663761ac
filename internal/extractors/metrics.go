package extractors

import (
	"github.com/faultlinehq/faultline/internal/models"
)

// MetricSummary condenses a timeseries query response: the mean over every
// point, the single highest point, and how many points contributed.
type MetricSummary struct {
	Value      *float64
	PeakValue  *float64
	PeakTS     *int64
	PointCount int
}

// SummarizeMetricsQuery flattens all series in the response into one
// summary. Points missing a timestamp or value are skipped; timestamps
// above ten billion are milliseconds and are reduced to epoch seconds.
func SummarizeMetricsQuery(resp models.MetricsResponse) MetricSummary {
	var (
		sum     float64
		count   int
		peakVal float64
		peakTS  int64
	)
	for _, series := range resp.Series {
		for _, point := range series.Pointlist {
			if len(point) < 2 || point[0] == nil || point[1] == nil {
				continue
			}
			ts := int64(*point[0])
			if ts > 10_000_000_000 {
				ts = int64(*point[0] / 1000)
			}
			v := *point[1]
			if count == 0 || v > peakVal {
				peakVal = v
				peakTS = ts
			}
			sum += v
			count++
		}
	}
	if count == 0 {
		return MetricSummary{}
	}
	avg := sum / float64(count)
	return MetricSummary{Value: &avg, PeakValue: &peakVal, PeakTS: &peakTS, PointCount: count}
}

// PercentChange returns the relative change in percent, or nil when either
// value is missing or the baseline is zero.
func PercentChange(baseline, incident *float64) *float64 {
	if baseline == nil || incident == nil || *baseline == 0 {
		return nil
	}
	pc := ((*incident - *baseline) / *baseline) * 100.0
	return &pc
}
