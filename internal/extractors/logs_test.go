package extractors

import (
	"strings"
	"testing"

	"github.com/faultlinehq/faultline/internal/models"
)

func TestNormalizeMessageSubstitutionOrder(t *testing.T) {
	in := "req 550e8400-e29b-41d4-a716-446655440000 from 10.0.0.1 ptr 0xDEADBEEF took 250 ms"
	want := "req <uuid> from <ip> ptr <hex> took <num> ms"
	if got := NormalizeMessage(in); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNormalizeMessageWhitespaceAndLength(t *testing.T) {
	if got := NormalizeMessage("  a\t b\n\nc  "); got != "a b c" {
		t.Fatalf("whitespace: got %q", got)
	}
	if got := NormalizeMessage(strings.Repeat("x", 600)); len(got) != 500 {
		t.Fatalf("length: got %d, want 500", len(got))
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("msg=timeout")
	if len(fp) != 12 {
		t.Fatalf("fingerprint length: got %d", len(fp))
	}
	if fp != Fingerprint("msg=timeout") {
		t.Fatal("fingerprint must be stable")
	}
	if fp == Fingerprint("msg=timeouts") {
		t.Fatal("distinct templates must not collide")
	}
}

func TestClusterLogsGroupsVariableParts(t *testing.T) {
	records := []models.RawRecord{
		rawRecord(map[string]any{"message": "timeout calling shard 12", "timestamp": "2024-01-01T00:00:05Z", "service": "api", "host": "h1"}),
		rawRecord(map[string]any{"message": "timeout calling shard 99", "timestamp": "2024-01-01T00:00:01Z"}),
		rawRecord(map[string]any{"message": "disk full"}),
	}
	set := ClusterLogs(records)
	if set.Len() != 2 {
		t.Fatalf("got %d clusters, want 2", set.Len())
	}

	first := set.Clusters()[0]
	if first.Template != "msg=timeout calling shard <num>" {
		t.Fatalf("template: got %q", first.Template)
	}
	if first.CountIncident != 2 {
		t.Fatalf("count: got %d, want 2", first.CountIncident)
	}
	if first.FirstSeen == nil || *first.FirstSeen != "2024-01-01T00:00:01Z" {
		t.Fatalf("first_seen must track the earliest timestamp, got %v", first.FirstSeen)
	}
	if first.Sample == nil || first.Sample.Message != "timeout calling shard 12" {
		t.Fatalf("sample must come from the first record, got %+v", first.Sample)
	}
	if first.Sample.Service == nil || *first.Sample.Service != "api" {
		t.Fatalf("sample service: got %v", first.Sample.Service)
	}
}

func TestClusterTemplateErrorFields(t *testing.T) {
	stack := "Traceback:\n  at handler.go:42"
	set := ClusterLogs([]models.RawRecord{rawRecord(map[string]any{
		"message":       "request failed",
		"error.type":    "TimeoutError",
		"error.message": "upstream timed out after 30 seconds",
		"error.stack":   stack,
	})})

	c := set.Clusters()[0]
	want := "type=TimeoutError | msg=upstream timed out after <num> seconds | stack=" + Fingerprint(stack)
	if c.Template != want {
		t.Fatalf("template: got %q, want %q", c.Template, want)
	}
	if c.Sample.StackHash == nil || *c.Sample.StackHash != Fingerprint(stack) {
		t.Fatalf("stack hash: got %v", c.Sample.StackHash)
	}
	if c.Sample.ErrorType == nil || *c.Sample.ErrorType != "TimeoutError" {
		t.Fatalf("sample error type: got %v", c.Sample.ErrorType)
	}
	if c.Sample.ErrorMessage == nil || *c.Sample.ErrorMessage != "upstream timed out after 30 seconds" {
		t.Fatalf("sample error message: got %v", c.Sample.ErrorMessage)
	}
}

func TestClusterTemplateStackSplitsSameMessage(t *testing.T) {
	set := ClusterLogs([]models.RawRecord{
		rawRecord(map[string]any{"message": "boom", "error.stack": "at a.go:1"}),
		rawRecord(map[string]any{"message": "boom", "error.stack": "at b.go:2"}),
		rawRecord(map[string]any{"message": "boom"}),
	})
	if set.Len() != 3 {
		t.Fatalf("distinct stacks must split clusters, got %d", set.Len())
	}
}

func TestMergeBaselineCounts(t *testing.T) {
	incident := ClusterLogs([]models.RawRecord{
		rawRecord(map[string]any{"message": "timeout calling shard 1"}),
		rawRecord(map[string]any{"message": "timeout calling shard 2"}),
		rawRecord(map[string]any{"message": "disk full"}),
	})
	baseline := []models.RawRecord{
		rawRecord(map[string]any{"message": "timeout calling shard 5"}),
		rawRecord(map[string]any{"message": "cache miss for key abc"}),
		rawRecord(map[string]any{"message": "cache miss for key def"}),
	}

	merged := MergeBaselineCounts(incident, baseline).Clusters()
	if len(merged) != 2 {
		t.Fatalf("baseline-only clusters must be dropped, got %d", len(merged))
	}
	if merged[0].CountBaseline != 1 {
		t.Fatalf("matched baseline count: got %d, want 1", merged[0].CountBaseline)
	}
	if merged[1].CountBaseline != 0 {
		t.Fatalf("unmatched baseline count: got %d, want 0", merged[1].CountBaseline)
	}
}

func TestRankClustersNewSignatureOutranksRecurring(t *testing.T) {
	incident := ClusterLogs([]models.RawRecord{
		rawRecord(map[string]any{"message": "slow query on table users"}),
		rawRecord(map[string]any{"message": "slow query on table users"}),
		rawRecord(map[string]any{"message": "slow query on table users"}),
		rawRecord(map[string]any{"message": "oom killed worker 7"}),
	})
	MergeBaselineCounts(incident, []models.RawRecord{
		rawRecord(map[string]any{"message": "slow query on table users"}),
	})

	ranked := RankClusters(incident, 10)
	if len(ranked) != 2 {
		t.Fatalf("got %d ranked clusters", len(ranked))
	}
	if ranked[0].Template != "msg=oom killed worker <num>" {
		t.Fatalf("new signature must rank first, got %q", ranked[0].Template)
	}
}

func TestRankClustersTieBreaksOnCount(t *testing.T) {
	set := NewClusterSet()
	for i := 0; i < 2; i++ {
		set.Add(models.LogView{Message: "first kind"})
	}
	for i := 0; i < 5; i++ {
		set.Add(models.LogView{Message: "second kind"})
	}

	ranked := RankClusters(set, 10)
	if ranked[0].Template != "msg=second kind" {
		t.Fatalf("higher count must win the ratio tie, got %q", ranked[0].Template)
	}

	if got := RankClusters(set, 1); len(got) != 1 {
		t.Fatalf("limit: got %d clusters", len(got))
	}
}
