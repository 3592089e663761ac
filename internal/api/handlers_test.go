package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/faultlinehq/faultline/internal/config"
	"github.com/faultlinehq/faultline/internal/models"
	"github.com/faultlinehq/faultline/internal/repo"
	"github.com/faultlinehq/faultline/internal/windows"
)

func init() { gin.SetMode(gin.TestMode) }

type triagerStub struct {
	err error
}

func (t *triagerStub) report(seed models.SeedType) (*models.Report, error) {
	if t.err != nil {
		return nil, t.err
	}
	return &models.Report{
		Meta: models.Meta{SeedType: seed, GeneratedAt: "2026-01-10T00:00:00+00:00", Site: "datadoghq.com"},
	}, nil
}

func (t *triagerStub) FromMonitor(context.Context, models.MonitorTriageRequest) (*models.Report, error) {
	return t.report(models.SeedMonitor)
}

func (t *triagerStub) FromLogs(context.Context, models.LogsTriageRequest) (*models.Report, error) {
	return t.report(models.SeedLogs)
}

func (t *triagerStub) FromService(context.Context, models.ServiceTriageRequest) (*models.Report, error) {
	return t.report(models.SeedService)
}

func (t *triagerStub) LatencyP95() time.Duration { return 42 * time.Millisecond }

func newTestHandler(stub Triager) http.Handler {
	return NewServer(config.ServerConfig{Address: ":0"}, nil, stub).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTriageEndpointsReturnReports(t *testing.T) {
	h := newTestHandler(&triagerStub{})

	cases := []struct {
		path string
		body string
		seed models.SeedType
	}{
		{"/api/v1/triage/monitor", `{"monitor_id": 123}`, models.SeedMonitor},
		{"/api/v1/triage/logs", `{"log_query": "service:api"}`, models.SeedLogs},
		{"/api/v1/triage/service", `{"service": "api", "env": "prod", "start": "1", "end": "2"}`, models.SeedService},
	}
	for _, tc := range cases {
		rec := doJSON(t, h, http.MethodPost, tc.path, tc.body)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, body %s", tc.path, rec.Code, rec.Body.String())
		}
		var report models.Report
		if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
			t.Fatalf("%s: decode response: %v", tc.path, err)
		}
		if report.Meta.SeedType != tc.seed {
			t.Fatalf("%s: seed = %q", tc.path, report.Meta.SeedType)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s: missing X-Request-ID header", tc.path)
		}
	}
}

func TestMalformedJSONReturns400(t *testing.T) {
	h := newTestHandler(&triagerStub{})
	rec := doJSON(t, h, http.MethodPost, "/api/v1/triage/logs", "{")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", fmt.Errorf("%w: log_query is required", models.ErrValidation), http.StatusBadRequest},
		{"invalid window", fmt.Errorf("%w: end must be after start", windows.ErrInvalidWindow), http.StatusBadRequest},
		{"upstream sentinel", fmt.Errorf("fetch monitor: %w", repo.ErrRequestFailed), http.StatusBadGateway},
		{"upstream api error", fmt.Errorf("fetch monitor: %w", &repo.APIError{StatusCode: 403, Body: "forbidden"}), http.StatusBadGateway},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(&triagerStub{err: tc.err})
			rec := doJSON(t, h, http.MethodPost, "/api/v1/triage/logs", `{"log_query": "service:api"}`)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.want, rec.Body.String())
			}
			var payload map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if payload["status"] != "error" || payload["error"] == "" {
				t.Fatalf("unexpected error payload %v", payload)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(&triagerStub{})
	rec := doJSON(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload struct {
		Status string `json:"status"`
		P95    int64  `json:"triage_p95_ms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	if payload.Status != "ok" {
		t.Fatalf("status = %q", payload.Status)
	}
	if payload.P95 != 42 {
		t.Fatalf("triage_p95_ms = %d", payload.P95)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newTestHandler(&triagerStub{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "req-abc-123" {
		t.Fatalf("X-Request-ID = %q", got)
	}
}
