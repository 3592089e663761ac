package windows

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

func TestParseAnchorEpochSeconds(t *testing.T) {
	got, err := ParseAnchor("1700000000", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseAnchorEpochMilliseconds(t *testing.T) {
	got, err := ParseAnchor("1700000000500", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2023, 11, 14, 22, 13, 20, int(500*time.Millisecond), time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if iso := FormatISO(got); iso != "2023-11-14T22:13:20.500000+00:00" {
		t.Fatalf("unexpected ISO rendering %q", iso)
	}
}

func TestParseAnchorISOVariants(t *testing.T) {
	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	for _, in := range []string{
		"2023-11-14T22:13:20Z",
		"2023-11-14T22:13:20+00:00",
		"2023-11-14T22:13:20",
		"2023-11-14 22:13:20",
	} {
		got, err := ParseAnchor(in, testNow)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("parse %q: expected %v, got %v", in, want, got)
		}
	}
}

func TestParseAnchorOffsetNormalizedToUTC(t *testing.T) {
	got, err := ParseAnchor("2023-11-14T23:13:20+01:00", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if iso := FormatISO(got); iso != "2023-11-14T22:13:20+00:00" {
		t.Fatalf("expected UTC normalization, got %q", iso)
	}
}

func TestParseAnchorEmptyUsesNow(t *testing.T) {
	got, err := ParseAnchor("  ", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(testNow) {
		t.Fatalf("expected now fallback %v, got %v", testNow, got)
	}
}

func TestParseAnchorGarbage(t *testing.T) {
	if _, err := ParseAnchor("not-a-time", testNow); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestEndingAtContiguousWindows(t *testing.T) {
	pair, err := EndingAt("1700000000", 10, 10, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pair.Baseline.End.Equal(pair.Incident.Start) {
		t.Fatalf("baseline end %v must equal incident start %v", pair.Baseline.End, pair.Incident.Start)
	}
	if got := pair.Incident.EndEpoch(); got != 1700000000 {
		t.Fatalf("expected incident end epoch 1700000000, got %d", got)
	}
	if got := pair.Incident.StartEpoch(); got != 1700000000-600 {
		t.Fatalf("expected incident start epoch %d, got %d", 1700000000-600, got)
	}
	if got := pair.Baseline.StartEpoch(); got != 1700000000-1200 {
		t.Fatalf("expected baseline start epoch %d, got %d", 1700000000-1200, got)
	}
}

func TestEndingAtBaselineDefaultsToWindow(t *testing.T) {
	pair, err := EndingAt("1700000000", 15, 0, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := pair.Baseline.End.Sub(pair.Baseline.Start); d != 15*time.Minute {
		t.Fatalf("expected 15m baseline, got %v", d)
	}
}

func TestEndingAtRejectsNonPositiveWindow(t *testing.T) {
	if _, err := EndingAt("1700000000", 0, 10, testNow); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestExplicitWindow(t *testing.T) {
	pair, err := Explicit("2025-01-01T00:00:00Z", "2025-01-01T00:10:00Z", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pair.Anchor.Equal(pair.Incident.End) {
		t.Fatalf("anchor must be the incident end")
	}
	if d := pair.Baseline.End.Sub(pair.Baseline.Start); d != 10*time.Minute {
		t.Fatalf("expected baseline to mirror incident duration, got %v", d)
	}
	if !pair.Baseline.End.Equal(pair.Incident.Start) {
		t.Fatalf("baseline must end where the incident starts")
	}
}

func TestExplicitRejectsReversedRange(t *testing.T) {
	_, err := Explicit("2025-01-01T00:10:00Z", "2025-01-01T00:00:00Z", testNow)
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if _, err := Explicit("2025-01-01T00:10:00Z", "2025-01-01T00:10:00Z", testNow); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow on zero-length range, got %v", err)
	}
}

func TestWindowsInfoRendering(t *testing.T) {
	pair, err := EndingAt("1700000000", 10, 10, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info := pair.ToInfo()
	if info.Anchor != "2023-11-14T22:13:20+00:00" {
		t.Fatalf("unexpected anchor rendering %q", info.Anchor)
	}
	if info.Incident.Start != "2023-11-14T22:03:20+00:00" {
		t.Fatalf("unexpected incident start %q", info.Incident.Start)
	}
	if info.Baseline.End != info.Incident.Start {
		t.Fatalf("baseline end %q must equal incident start %q", info.Baseline.End, info.Incident.Start)
	}
	if info.Incident.EndEpoch != 1700000000 {
		t.Fatalf("unexpected incident end epoch %d", info.Incident.EndEpoch)
	}
}
