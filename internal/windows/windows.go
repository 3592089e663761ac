package windows

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/faultlinehq/faultline/internal/models"
)

// ErrInvalidWindow reports an unusable time range.
var ErrInvalidWindow = errors.New("invalid window")

// Window is one immutable time range with End after Start.
type Window struct {
	Start time.Time
	End   time.Time
}

// Pair couples the incident window with the baseline immediately before it:
// Baseline.End always equals Incident.Start.
type Pair struct {
	Incident Window
	Baseline Window
	Anchor   time.Time
}

// ParseAnchor interprets ts as an epoch (seconds, or milliseconds when the
// value exceeds 10_000_000_000) or an ISO-8601 timestamp. Empty input yields
// now; timestamps without a zone are assumed UTC.
func ParseAnchor(ts string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(ts)
	if s == "" {
		return now.UTC().Truncate(time.Microsecond), nil
	}
	if isDigits(s) {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: parse epoch %q: %v", ErrInvalidWindow, s, err)
		}
		if v > 10_000_000_000 { // milliseconds
			return time.Unix(v/1000, (v%1000)*int64(time.Millisecond)).UTC(), nil
		}
		return time.Unix(v, 0).UTC(), nil
	}
	t, err := parseISO(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: parse timestamp %q: %v", ErrInvalidWindow, s, err)
	}
	return t.UTC().Truncate(time.Microsecond), nil
}

// EndingAt derives the window pair ending at the given anchor. The window
// length must be positive; baselineMinutes falls back to windowMinutes when
// non-positive.
func EndingAt(anchorTS string, windowMinutes, baselineMinutes int, now time.Time) (Pair, error) {
	if windowMinutes <= 0 {
		return Pair{}, fmt.Errorf("%w: window must cover a positive duration", ErrInvalidWindow)
	}
	if baselineMinutes <= 0 {
		baselineMinutes = windowMinutes
	}
	anchor, err := ParseAnchor(anchorTS, now)
	if err != nil {
		return Pair{}, err
	}

	win := time.Duration(windowMinutes) * time.Minute
	base := time.Duration(baselineMinutes) * time.Minute
	incident := Window{Start: anchor.Add(-win), End: anchor}
	baseline := Window{Start: incident.Start.Add(-base), End: incident.Start}
	return Pair{Incident: incident, Baseline: baseline, Anchor: anchor}, nil
}

// Explicit builds the pair from a caller-supplied incident range. The
// baseline is the same duration immediately before it and the anchor is the
// incident end.
func Explicit(start, end string, now time.Time) (Pair, error) {
	s, err := ParseAnchor(start, now)
	if err != nil {
		return Pair{}, err
	}
	e, err := ParseAnchor(end, now)
	if err != nil {
		return Pair{}, err
	}
	if !e.After(s) {
		return Pair{}, fmt.Errorf("%w: end must be after start", ErrInvalidWindow)
	}

	secs := int64(e.Sub(s) / time.Second)
	incident := Window{Start: s, End: e}
	baseline := Window{Start: s.Add(-time.Duration(secs) * time.Second), End: s}
	return Pair{Incident: incident, Baseline: baseline, Anchor: e}, nil
}

// StartEpoch returns the window start as integer epoch seconds.
func (w Window) StartEpoch() int64 { return w.Start.Unix() }

// EndEpoch returns the window end as integer epoch seconds.
func (w Window) EndEpoch() int64 { return w.End.Unix() }

// ToInfo renders the window for reports.
func (w Window) ToInfo() models.WindowInfo {
	return models.WindowInfo{
		Start:      FormatISO(w.Start),
		End:        FormatISO(w.End),
		StartEpoch: w.StartEpoch(),
		EndEpoch:   w.EndEpoch(),
	}
}

// ToInfo renders the pair for reports.
func (p Pair) ToInfo() models.WindowsInfo {
	return models.WindowsInfo{
		Anchor:   FormatISO(p.Anchor),
		Incident: p.Incident.ToInfo(),
		Baseline: p.Baseline.ToInfo(),
	}
}

// FormatISO renders t as ISO-8601 UTC with an explicit +00:00 offset. The
// microsecond fraction appears only when non-zero.
func FormatISO(t time.Time) string {
	t = t.UTC()
	s := t.Format("2006-01-02T15:04:05")
	if micros := t.Nanosecond() / 1000; micros != 0 {
		s += fmt.Sprintf(".%06d", micros)
	}
	return s + "+00:00"
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func parseISO(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized timestamp format")
}
