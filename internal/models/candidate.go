package models

// CandidateKind enumerates candidate categories.
type CandidateKind string

const (
	KindLogs       CandidateKind = "logs"
	KindEndpoint   CandidateKind = "endpoint"
	KindDependency CandidateKind = "dependency"
)

// Candidate is one scored root-cause hypothesis. Candidates are immutable
// once built and totally ordered by score descending, insertion order on ties.
type Candidate struct {
	Kind     CandidateKind `json:"kind"`
	Title    string        `json:"title"`
	Score    float64       `json:"score"`
	Evidence any           `json:"evidence"`
}

// EndpointEvidence backs an endpoint-regression candidate. Baseline holds the
// baseline stats, or an empty object when the endpoint is new in the incident
// window.
type EndpointEvidence struct {
	Incident *EndpointStats `json:"incident"`
	Baseline any            `json:"baseline"`
	Delta    float64        `json:"delta"`
}

// DependencyEvidence backs a downstream-suspect candidate.
type DependencyEvidence struct {
	Incident        *DependencyStats `json:"incident"`
	Baseline        any              `json:"baseline"`
	DurationDeltaMs float64          `json:"duration_delta_ms"`
	ErrorRateDelta  float64          `json:"error_rate_delta"`
}
