package scope

import (
	"testing"

	"github.com/faultlinehq/faultline/internal/models"
)

func logRecord(attrs map[string]any) models.RawRecord {
	return models.RawRecord{Attributes: attrs}
}

func TestFromMonitorTags(t *testing.T) {
	s := FromMonitorTags([]string{"service:api", "svc:legacy", "environment:prod", "aws_region:us-east-1", "kube_cluster_name:main", "team:payments"})
	if s.Service != "api" {
		t.Fatalf("expected service api, got %q", s.Service)
	}
	if s.Env != "prod" {
		t.Fatalf("expected env prod via environment alias, got %q", s.Env)
	}
	if s.Region != "us-east-1" {
		t.Fatalf("expected region us-east-1, got %q", s.Region)
	}
	if s.Cluster != "main" {
		t.Fatalf("expected cluster main, got %q", s.Cluster)
	}
	if s.Tags["team"] != "payments" {
		t.Fatalf("expected full tag map, got %v", s.Tags)
	}
}

func TestTagsToMapFirstValueWinsAndMalformedSkipped(t *testing.T) {
	tm := tagsToMap([]string{"service:a", "service:b", "plain", "empty:", ":value", " spaced : ok "})
	if tm["service"] != "a" {
		t.Fatalf("expected first value to win, got %q", tm["service"])
	}
	if tm["spaced"] != "ok" {
		t.Fatalf("expected trimmed key/value, got %v", tm)
	}
	if len(tm) != 2 {
		t.Fatalf("expected malformed tags skipped, got %v", tm)
	}
}

func TestFromLogsPluralityAndTies(t *testing.T) {
	records := []models.RawRecord{
		logRecord(map[string]any{"service": "api", "host": "h1", "ddtags": "env:prod,region:us-east-1"}),
		logRecord(map[string]any{"service": "api", "host": "h2", "ddtags": "env:prod,cluster:main"}),
		logRecord(map[string]any{"service": "web", "host": "h1", "ddtags": "env:staging"}),
		logRecord(map[string]any{"service": 42, "host": ""}),
	}
	s := FromLogs(records)
	if s.Service != "api" {
		t.Fatalf("expected api by plurality, got %q", s.Service)
	}
	if s.Env != "prod" {
		t.Fatalf("expected prod by plurality, got %q", s.Env)
	}
	if s.Region != "us-east-1" || s.Cluster != "main" {
		t.Fatalf("expected ddtags-derived region/cluster, got %q/%q", s.Region, s.Cluster)
	}
	if len(s.Hosts) != 2 || s.Hosts[0] != "h1" || s.Hosts[1] != "h2" {
		t.Fatalf("expected hosts ordered by count then name, got %v", s.Hosts)
	}
}

func TestFromLogsTieBreaksLexicographically(t *testing.T) {
	records := []models.RawRecord{
		logRecord(map[string]any{"service": "zeta"}),
		logRecord(map[string]any{"service": "alpha"}),
	}
	if s := FromLogs(records); s.Service != "alpha" {
		t.Fatalf("expected lexicographic tie-break, got %q", s.Service)
	}
}

func TestFromLogsHostsCappedAtFive(t *testing.T) {
	var records []models.RawRecord
	for _, h := range []string{"h1", "h2", "h3", "h4", "h5", "h6", "h7"} {
		records = append(records, logRecord(map[string]any{"host": h}))
	}
	if s := FromLogs(records); len(s.Hosts) != 5 {
		t.Fatalf("expected at most 5 hosts, got %v", s.Hosts)
	}
}

func TestEventTagQuery(t *testing.T) {
	s := Scope{Service: "api", Env: "prod", Cluster: "main"}
	if q := s.EventTagQuery(); q != "service:api,env:prod,cluster:main" {
		t.Fatalf("unexpected tag query %q", q)
	}
	if q := (Scope{}).EventTagQuery(); q != "" {
		t.Fatalf("expected empty query for empty scope, got %q", q)
	}
}

func TestToInfoNullsAndEmptyCollections(t *testing.T) {
	info := (Scope{Service: "api"}).ToInfo()
	if info.Service == nil || *info.Service != "api" {
		t.Fatalf("expected service pointer, got %v", info.Service)
	}
	if info.Environment != nil {
		t.Fatalf("expected nil environment, got %v", *info.Environment)
	}
	if info.Hosts == nil || info.Pods == nil || info.TagFilters == nil {
		t.Fatalf("expected non-nil collections, got %+v", info)
	}
}
