package models

// LogCluster aggregates log records sharing a normalized template. Two
// records land in the same cluster iff their templates are byte-identical.
type LogCluster struct {
	Fingerprint   string         `json:"fingerprint"`
	Template      string         `json:"template"`
	CountIncident int            `json:"count_incident"`
	CountBaseline int            `json:"count_baseline"`
	FirstSeen     *string        `json:"first_seen"`
	Sample        *ClusterSample `json:"sample"`
}

// ClusterSample is the bounded representative record kept from the first
// sighting of a cluster.
type ClusterSample struct {
	Timestamp    *string `json:"timestamp"`
	Service      *string `json:"service"`
	Host         *string `json:"host"`
	Message      string  `json:"message"`
	ErrorType    *string `json:"error_type"`
	ErrorMessage *string `json:"error_message"`
	StackHash    *string `json:"stack_hash"`
}
