package extractors

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/faultlinehq/faultline/internal/models"
)

// firstAttr returns the value of the first key present in attrs. Presence
// wins over truthiness, so an explicit null still shadows later keys.
func firstAttr(attrs map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := attrs[k]; ok {
			return v
		}
	}
	return nil
}

// firstTruthyAttr returns the value of the first key whose value is truthy.
func firstTruthyAttr(attrs map[string]any, keys ...string) any {
	for _, k := range keys {
		if v := attrs[k]; truthy(v) {
			return v
		}
	}
	return nil
}

// truthy reports whether a raw attribute carries a usable value: nil, empty
// strings, zero numbers, false and empty collections all count as absent.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case map[string]any:
		return len(x) > 0
	case []any:
		return len(x) > 0
	default:
		return true
	}
}

func safeString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

func safeFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func safeInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		return int64(x), true
	case int:
		return int64(x), true
	case int64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// NormalizeSpan converts one raw span record into its canonical view.
// Durations above 10_000 are taken as nanoseconds and reduced to
// milliseconds; smaller values are assumed to be milliseconds already.
func NormalizeSpan(rec models.RawRecord) models.SpanView {
	attrs := rec.Attributes

	var durationMs *float64
	if f, ok := safeFloat(firstAttr(attrs, "duration", "duration_ns", "durationNano")); ok {
		ms := f
		if f > 10_000 {
			ms = f / 1_000_000.0
		}
		durationMs = &ms
	}

	var errFlag *bool
	switch x := firstAttr(attrs, "error", "is_error").(type) {
	case bool:
		b := x
		errFlag = &b
	case float64:
		b := int64(x) != 0
		errFlag = &b
	case int:
		b := x != 0
		errFlag = &b
	case int64:
		b := x != 0
		errFlag = &b
	}

	var httpStatus *int
	if n, ok := safeInt64(firstAttr(attrs, "http.status_code", "http.status")); ok {
		s := int(n)
		httpStatus = &s
	}

	return models.SpanView{
		Timestamp:   safeString(attrs["timestamp"]),
		Service:     safeString(attrs["service"]),
		Resource:    safeString(firstAttr(attrs, "resource", "resource_name")),
		Name:        safeString(attrs["name"]),
		SpanKind:    safeString(firstAttr(attrs, "span.kind", "span_kind")),
		SpanType:    safeString(firstAttr(attrs, "span.type", "span_type", "type")),
		DurationMs:  durationMs,
		Error:       errFlag,
		HTTPStatus:  httpStatus,
		TraceID:     safeString(firstAttr(attrs, "trace_id", "trace.id")),
		SpanID:      safeString(firstAttr(attrs, "span_id", "span.id")),
		PeerService: safeString(firstAttr(attrs, "peer.service", "peer_service")),
	}
}

// NormalizeSpans converts a batch of raw records.
func NormalizeSpans(records []models.RawRecord) []models.SpanView {
	out := make([]models.SpanView, 0, len(records))
	for _, rec := range records {
		out = append(out, NormalizeSpan(rec))
	}
	return out
}

// NormalizeLog converts one raw log record into its canonical view. The
// error fields resolve the flat dotted keys first, then the nested error
// object, then the bare exception and stack_trace fallbacks.
func NormalizeLog(rec models.RawRecord) models.LogView {
	attrs := rec.Attributes

	view := models.LogView{
		Timestamp: stringValue(attrs["timestamp"]),
		Service:   stringValue(attrs["service"]),
		Host:      stringValue(attrs["host"]),
		Message:   safeString(firstTruthyAttr(attrs, "message", "msg")),
	}

	errType := errorField(attrs, "error.type", "type")
	if errType == nil {
		if s, ok := attrs["exception"].(string); ok {
			errType = s
		}
	}
	errMsg := errorField(attrs, "error.message", "message")
	errStack := errorField(attrs, "error.stack", "stack")
	if errStack == nil {
		errStack = attrs["stack_trace"]
	}

	if truthy(errType) {
		view.ErrorType = safeString(errType)
	}
	if truthy(errMsg) {
		view.ErrorMessage = safeString(errMsg)
	}
	// Only string stacks hash into the template.
	if s, ok := errStack.(string); ok {
		view.ErrorStack = s
	}
	return view
}

// errorField resolves one error attribute: the flat key when truthy,
// otherwise the field of a nested error object.
func errorField(attrs map[string]any, flat, nested string) any {
	if v := attrs[flat]; truthy(v) {
		return v
	}
	if m, ok := attrs["error"].(map[string]any); ok {
		if v := m[nested]; truthy(v) {
			return v
		}
	}
	return nil
}

// stringValue keeps string-typed non-empty attributes and drops the rest.
func stringValue(v any) *string {
	if s, ok := v.(string); ok && s != "" {
		return &s
	}
	return nil
}
