package models

// RawRecord is a single log or span event as returned by the Datadog
// search APIs: an opaque id plus the flattened attribute map. Extractors
// normalize it into the typed views below.
type RawRecord struct {
	ID         string
	Attributes map[string]any
}

// Monitor is the subset of the Datadog monitor object the triage uses.
type Monitor struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Query string   `json:"query"`
	Tags  []string `json:"tags"`
}

// MetricsResponse is the v1 timeseries query payload.
type MetricsResponse struct {
	Series []MetricSeries `json:"series"`
}

// MetricSeries holds one scope's points. Each point is a [timestamp, value]
// pair; either element may be null.
type MetricSeries struct {
	Metric    string       `json:"metric"`
	Scope     string       `json:"scope"`
	Pointlist [][]*float64 `json:"pointlist"`
}

// EventsResponse is the v1 event stream payload. Events stay untyped
// because the stream mixes deploy, config and alert shapes.
type EventsResponse struct {
	Events []map[string]any `json:"events"`
}

// LogView is the canonical form of one raw log record. Pointer fields
// distinguish an absent attribute from an empty one; the error fields are
// already resolved from their flat or nested encodings, empty meaning none.
type LogView struct {
	Timestamp    *string
	Service      *string
	Host         *string
	Message      string
	ErrorType    string
	ErrorMessage string
	ErrorStack   string
}
