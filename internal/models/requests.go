package models

import (
	"errors"
	"fmt"
)

// ErrValidation marks request validation failures so transports can map them
// to client errors.
var ErrValidation = errors.New("invalid request")

// Analysis modes for service-seeded runs.
const (
	ModeLatency = "latency"
	ModeErrors  = "errors"
)

// MonitorTriageRequest seeds a triage run from a Datadog monitor.
type MonitorTriageRequest struct {
	MonitorID       int64  `json:"monitor_id"`
	TriggerTS       string `json:"trigger_ts,omitempty"`
	WindowMinutes   int    `json:"window_minutes,omitempty"`
	BaselineMinutes int    `json:"baseline_minutes,omitempty"`
}

// Validate checks required fields and fills defaults in place.
func (r *MonitorTriageRequest) Validate() error {
	if r.MonitorID <= 0 {
		return fmt.Errorf("%w: monitor_id must be positive", ErrValidation)
	}
	if r.WindowMinutes < 0 || r.BaselineMinutes < 0 {
		return fmt.Errorf("%w: window minutes must be positive", ErrValidation)
	}
	if r.WindowMinutes == 0 {
		r.WindowMinutes = 60
	}
	if r.BaselineMinutes == 0 {
		r.BaselineMinutes = 60
	}
	return nil
}

// LogsTriageRequest seeds a triage run from a log search query.
type LogsTriageRequest struct {
	LogQuery        string `json:"log_query"`
	AnchorTS        string `json:"anchor_ts,omitempty"`
	WindowMinutes   int    `json:"window_minutes,omitempty"`
	BaselineMinutes int    `json:"baseline_minutes,omitempty"`
}

// Validate checks required fields and fills defaults in place.
func (r *LogsTriageRequest) Validate() error {
	if r.LogQuery == "" {
		return fmt.Errorf("%w: log_query is required", ErrValidation)
	}
	if r.WindowMinutes < 0 || r.BaselineMinutes < 0 {
		return fmt.Errorf("%w: window minutes must be positive", ErrValidation)
	}
	if r.WindowMinutes == 0 {
		r.WindowMinutes = 30
	}
	if r.BaselineMinutes == 0 {
		r.BaselineMinutes = 30
	}
	return nil
}

// ServiceTriageRequest seeds a triage run from a service and explicit window.
type ServiceTriageRequest struct {
	Service string `json:"service"`
	Env     string `json:"env"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Mode    string `json:"mode,omitempty"`
}

// Validate checks required fields and fills defaults in place.
func (r *ServiceTriageRequest) Validate() error {
	if r.Service == "" {
		return fmt.Errorf("%w: service is required", ErrValidation)
	}
	if r.Env == "" {
		return fmt.Errorf("%w: env is required", ErrValidation)
	}
	if r.Start == "" || r.End == "" {
		return fmt.Errorf("%w: start and end are required", ErrValidation)
	}
	if r.Mode == "" {
		r.Mode = ModeLatency
	}
	if r.Mode != ModeLatency && r.Mode != ModeErrors {
		return fmt.Errorf("%w: mode must be latency or errors", ErrValidation)
	}
	return nil
}
