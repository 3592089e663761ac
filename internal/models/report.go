package models

// Report is the full triage output. Field order is the wire order; consumers
// diff serialized reports, so it never changes.
type Report struct {
	Meta            Meta        `json:"meta"`
	Windows         WindowsInfo `json:"windows"`
	Scope           ScopeInfo   `json:"scope"`
	Symptoms        []Symptom   `json:"symptoms"`
	Findings        Findings    `json:"findings"`
	Recommendations []string    `json:"recommendations"`
}

// Meta describes how and when the report was produced.
type Meta struct {
	SeedType    SeedType `json:"seed_type"`
	GeneratedAt string   `json:"generated_at"`
	Site        string   `json:"dd_site"`
	Input       any      `json:"input"`
}

// SeedType enumerates the signals a triage run can start from.
type SeedType string

const (
	SeedMonitor SeedType = "monitor"
	SeedLogs    SeedType = "logs"
	SeedService SeedType = "service"
)

// MonitorInput echoes the parameters of a monitor-seeded run.
type MonitorInput struct {
	MonitorID       int64   `json:"monitor_id"`
	TriggerTS       *string `json:"trigger_ts"`
	WindowMinutes   int     `json:"window_minutes"`
	BaselineMinutes int     `json:"baseline_minutes"`
}

// LogsInput echoes the parameters of a logs-seeded run.
type LogsInput struct {
	LogQuery        string  `json:"log_query"`
	AnchorTS        *string `json:"anchor_ts"`
	WindowMinutes   int     `json:"window_minutes"`
	BaselineMinutes int     `json:"baseline_minutes"`
}

// ServiceInput echoes the parameters of a service-seeded run.
type ServiceInput struct {
	Service string `json:"service"`
	Env     string `json:"env"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Mode    string `json:"mode"`
}

// WindowsInfo is the serialized incident/baseline window pair.
type WindowsInfo struct {
	Anchor   string     `json:"anchor"`
	Incident WindowInfo `json:"incident"`
	Baseline WindowInfo `json:"baseline"`
}

// WindowInfo is one serialized time range.
type WindowInfo struct {
	Start      string `json:"start"`
	End        string `json:"end"`
	StartEpoch int64  `json:"start_epoch"`
	EndEpoch   int64  `json:"end_epoch"`
}

// ScopeInfo is the serialized triage scope. Unresolved fields render null;
// hosts, pods and tag_filters always render, empty or not.
type ScopeInfo struct {
	Service     *string           `json:"service"`
	Environment *string           `json:"environment"`
	Region      *string           `json:"region"`
	Cluster     *string           `json:"cluster"`
	Hosts       []string          `json:"hosts"`
	Pods        []string          `json:"pods"`
	TagFilters  map[string]string `json:"tag_filters"`
}

// SymptomType enumerates symptom categories.
type SymptomType string

const (
	SymptomLatency      SymptomType = "latency"
	SymptomErrorRate    SymptomType = "error_rate"
	SymptomLogSignature SymptomType = "log_signature"
	SymptomMetric       SymptomType = "metric"
)

// Symptom summarizes the seed signal over the baseline and incident windows.
type Symptom struct {
	Type             SymptomType `json:"type"`
	QueryOrSignature string      `json:"query_or_signature"`
	BaselineValue    *float64    `json:"baseline_value"`
	IncidentValue    *float64    `json:"incident_value"`
	PercentChange    *float64    `json:"percent_change"`
	PeakTS           *string     `json:"peak_ts"`
	PeakValue        *float64    `json:"peak_value"`
}

// Findings carries the per-seed evidence blocks. Seed-specific fields are
// omitted when they do not apply to the run.
type Findings struct {
	Monitor          *MonitorInfo `json:"monitor,omitempty"`
	Service          *ServiceInfo `json:"service,omitempty"`
	MetricSymptom    *Symptom     `json:"metric_symptom,omitempty"`
	LogQuery         string       `json:"log_query,omitempty"`
	LogQueryUsed     string       `json:"log_query_used,omitempty"`
	IncidentLogCount *int         `json:"incident_log_count,omitempty"`
	BaselineLogCount *int         `json:"baseline_log_count,omitempty"`
	LogClusters      []LogCluster `json:"log_clusters"`
	APM              any          `json:"apm"`
	Events           []EventItem  `json:"events"`
	Candidates       []Candidate  `json:"candidates"`
}

// MonitorInfo identifies the seeding monitor.
type MonitorInfo struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Query string   `json:"query"`
	Tags  []string `json:"tags"`
}

// ServiceInfo identifies the seeding service and analysis mode.
type ServiceInfo struct {
	Service string `json:"service"`
	Env     string `json:"env"`
	Mode    string `json:"mode"`
}

// APMDisabled is the apm block when attribution could not run at all.
type APMDisabled struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason"`
}

// APMError is the apm block when the span queries failed.
type APMError struct {
	Enabled bool   `json:"enabled"`
	Error   string `json:"error"`
}

// APMFindings is the apm block for a successful attribution pass.
type APMFindings struct {
	Enabled         bool                   `json:"enabled"`
	Query           string                 `json:"query"`
	Counts          APMCounts              `json:"counts"`
	TopEndpoints    []EndpointComparison   `json:"top_endpoints"`
	TopDependencies []DependencyComparison `json:"top_dependencies"`
}

// APMCounts tallies the spans considered per window and kind.
type APMCounts struct {
	IncidentSpans       int `json:"incident_spans"`
	BaselineSpans       int `json:"baseline_spans"`
	IncidentServerSpans int `json:"incident_server_spans"`
	BaselineServerSpans int `json:"baseline_server_spans"`
	IncidentClientSpans int `json:"incident_client_spans"`
	BaselineClientSpans int `json:"baseline_client_spans"`
}

// EndpointComparison pairs an endpoint's incident stats with its baseline
// stats, null when the endpoint never appeared in the baseline window.
type EndpointComparison struct {
	Resource string         `json:"resource"`
	Incident *EndpointStats `json:"incident"`
	Baseline *EndpointStats `json:"baseline"`
}

// DependencyComparison pairs a dependency's incident stats with its baseline.
type DependencyComparison struct {
	Dependency string           `json:"dependency"`
	Incident   *DependencyStats `json:"incident"`
	Baseline   *DependencyStats `json:"baseline"`
}
