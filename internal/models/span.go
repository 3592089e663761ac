package models

// SpanView is the canonical form of one raw trace span. Missing or
// unparseable fields are zero values (nil for the typed optionals); durations
// are always milliseconds.
type SpanView struct {
	Timestamp   string
	Service     string
	Resource    string
	Name        string
	SpanKind    string
	SpanType    string
	DurationMs  *float64
	Error       *bool
	HTTPStatus  *int
	TraceID     string
	SpanID      string
	PeerService string
}

// EndpointStats aggregates the spans of one endpoint (resource) in a window.
// Percentiles are nil when no span in the group carried a duration.
type EndpointStats struct {
	Count          int      `json:"count"`
	ErrorCount     int      `json:"error_count"`
	ErrorRate      float64  `json:"error_rate"`
	P50Ms          *float64 `json:"p50_ms"`
	P95Ms          *float64 `json:"p95_ms"`
	P99Ms          *float64 `json:"p99_ms"`
	SampleTraceIDs []string `json:"sample_trace_ids"`
}

// DependencyStats aggregates the client spans of one downstream dependency.
// TotalDurationMs sums every observed duration, nil when none were observed.
type DependencyStats struct {
	Count           int      `json:"count"`
	ErrorCount      int      `json:"error_count"`
	ErrorRate       float64  `json:"error_rate"`
	TotalDurationMs *float64 `json:"total_duration_ms"`
	P95Ms           *float64 `json:"p95_ms"`
	SampleTraceIDs  []string `json:"sample_trace_ids"`
}
