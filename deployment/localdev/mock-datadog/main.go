package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Serves just enough of the Datadog v1/v2 surface for a local faultline run:
// point DD_SITE (or --site) at http://localhost:8126 and every seed works.
// Windows ending within the last two hours get "incident" telemetry, older
// windows get the quiet baseline, so delta scores come out non-trivial.

const incidentHorizon = 2 * time.Hour

type searchRequest struct {
	Filter struct {
		From  string `json:"from"`
		To    string `json:"to"`
		Query string `json:"query"`
	} `json:"filter"`
	Page struct {
		Limit  int    `json:"limit"`
		Cursor string `json:"cursor"`
	} `json:"page"`
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/monitor/", func(w http.ResponseWriter, r *http.Request) {
		if !enforceGet(w, r) {
			return
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/v1/monitor/"), 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{
			"id":    id,
			"name":  "checkout p95 latency",
			"type":  "metric alert",
			"query": "avg(last_10m):p95:trace.http.request.duration{service:checkout,env:prod} > 2",
			"tags":  []string{"service:checkout", "env:prod", "team:payments"},
		})
	})

	mux.HandleFunc("/api/v1/query", func(w http.ResponseWriter, r *http.Request) {
		if !enforceGet(w, r) {
			return
		}
		from, _ := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
		to, _ := strconv.ParseInt(r.URL.Query().Get("to"), 10, 64)
		base, step := 120.0, 5.0
		if recent(time.Unix(to, 0)) {
			base, step = 480.0, 90.0
		}
		points := make([][]float64, 0, 5)
		for i := 0; i < 5; i++ {
			ts := from + (to-from)*int64(i)/4
			points = append(points, []float64{float64(ts) * 1000, base + step*float64(i)})
		}
		writeJSON(w, map[string]any{
			"series": []map[string]any{
				{
					"metric":    "trace.http.request.duration",
					"scope":     "service:checkout,env:prod",
					"pointlist": points,
				},
			},
		})
	})

	mux.HandleFunc("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		if !enforceGet(w, r) {
			return
		}
		end, _ := strconv.ParseInt(r.URL.Query().Get("end"), 10, 64)
		events := []map[string]any{}
		if recent(time.Unix(end, 0)) {
			events = append(events, map[string]any{
				"id":            9001,
				"title":         "Deployed checkout v2026.08.19",
				"text":          "rollout of checkout release v2026.08.19 to prod",
				"date_happened": end - 20*60,
				"alert_type":    "info",
				"tags":          []string{"service:checkout", "env:prod", "source:deploy"},
				"url":           "https://app.datadoghq.com/event/9001",
			}, map[string]any{
				"id":            9002,
				"title":         "Config change: payments connection pool",
				"text":          "max_connections lowered from 100 to 20",
				"date_happened": end - 15*60,
				"alert_type":    "warning",
				"tags":          []string{"service:payments", "env:prod", "source:config"},
			})
		}
		writeJSON(w, map[string]any{"events": events})
	})

	mux.HandleFunc("/api/v2/logs/events/search", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeSearch(w, r)
		if !ok {
			return
		}
		if !searchRecent(req) {
			writeJSON(w, searchPayload(baselineLogs(), ""))
			return
		}
		// Two pages so cursor handling gets exercised locally.
		if req.Page.Cursor == "" {
			writeJSON(w, searchPayload(incidentLogs()[:3], "page-2"))
			return
		}
		writeJSON(w, searchPayload(incidentLogs()[3:], ""))
	})

	mux.HandleFunc("/api/v2/spans/events/search", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeSearch(w, r)
		if !ok {
			return
		}
		if !searchRecent(req) {
			writeJSON(w, searchPayload(baselineSpans(), ""))
			return
		}
		writeJSON(w, searchPayload(incidentSpans(), ""))
	})

	logger := log.New(log.Writer(), "datadog-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":8126",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :8126")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

type record struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
}

func searchPayload(data []record, after string) map[string]any {
	page := map[string]any{}
	if after != "" {
		page["after"] = after
	}
	return map[string]any{
		"data": data,
		"meta": map[string]any{"page": page},
	}
}

func baselineLogs() []record {
	return []record{
		logRecord("log-b1", -50*time.Minute, "info", "request completed in 120 ms", nil),
		logRecord("log-b2", -40*time.Minute, "info", "request completed in 98 ms", nil),
	}
}

func incidentLogs() []record {
	burst := []record{}
	for i := 0; i < 4; i++ {
		burst = append(burst, logRecord(
			fmt.Sprintf("log-i%d", i+1),
			time.Duration(-(26 - i*4))*time.Minute,
			"error",
			fmt.Sprintf("payment gateway timeout after %d ms", 2400+i*37),
			map[string]any{
				"type":    "GatewayTimeout",
				"message": "upstream payments did not respond",
				"stack":   "GatewayTimeout: upstream payments did not respond\n  at gateway.Charge\n  at checkout.Submit",
			},
		))
	}
	return append(burst,
		logRecord("log-i5", -12*time.Minute, "error", "connection pool exhausted (20 in use)", map[string]any{
			"type":    "PoolExhausted",
			"message": "no idle connections",
		}),
	)
}

func logRecord(id string, age time.Duration, status, message string, errObj map[string]any) record {
	attrs := map[string]any{
		"timestamp": time.Now().Add(age).UTC().Format(time.RFC3339),
		"service":   "checkout",
		"host":      "i-0f3a9c21",
		"status":    status,
		"message":   message,
	}
	if errObj != nil {
		attrs["error"] = errObj
	}
	return record{ID: id, Attributes: attrs}
}

func baselineSpans() []record {
	return []record{
		spanRecord("span-b1", -55*time.Minute, "POST /payments", 80, false, 200),
		spanRecord("span-b2", -45*time.Minute, "POST /payments", 95, false, 200),
		spanRecord("span-b3", -35*time.Minute, "GET /cart", 12, false, 200),
	}
}

func incidentSpans() []record {
	return []record{
		spanRecord("span-i1", -25*time.Minute, "POST /payments", 2480, true, 504),
		spanRecord("span-i2", -20*time.Minute, "POST /payments", 2510, true, 504),
		spanRecord("span-i3", -15*time.Minute, "POST /payments", 2390, false, 200),
		spanRecord("span-i4", -10*time.Minute, "GET /cart", 14, false, 200),
	}
}

func spanRecord(id string, age time.Duration, resource string, durationMs float64, isErr bool, status int) record {
	errVal := 0
	if isErr {
		errVal = 1
	}
	return record{ID: id, Attributes: map[string]any{
		"timestamp":        time.Now().Add(age).UTC().Format(time.RFC3339),
		"service":          "checkout",
		"resource_name":    resource,
		"name":             "http.request",
		"span.kind":        "client",
		"duration":         durationMs * 1_000_000,
		"error":            errVal,
		"http.status_code": status,
		"trace_id":         "trace-" + id,
		"span_id":          id,
		"peer.service":     "payments",
	}}
}

func decodeSearch(w http.ResponseWriter, r *http.Request) (searchRequest, bool) {
	var req searchRequest
	if !enforcePost(w, r) {
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func searchRecent(req searchRequest) bool {
	to, err := time.Parse(time.RFC3339, req.Filter.To)
	if err != nil {
		return true
	}
	return recent(to)
}

func recent(to time.Time) bool {
	return time.Since(to) < incidentHorizon
}

func enforceGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
