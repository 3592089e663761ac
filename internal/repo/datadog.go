package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/faultlinehq/faultline/internal/metrics"
	"github.com/faultlinehq/faultline/internal/models"
	"github.com/faultlinehq/faultline/internal/utils"
	"github.com/faultlinehq/faultline/internal/windows"
)

const (
	maxPageLimit    = 1000
	defaultMaxPages = 2
	maxRetryBody    = 500
	maxErrorBody    = 1000
)

// ErrRequestFailed marks any Datadog call that did not produce a usable
// response, whether it exhausted its retries or was rejected outright.
var ErrRequestFailed = errors.New("datadog request failed")

// APIError is a Datadog HTTP rejection that is not worth retrying, such as
// an authentication or validation failure.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("datadog: status=%d body=%s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return ErrRequestFailed }

// DatadogClient calls the Datadog v1/v2 APIs the triage pipeline reads
// from: monitors, metric queries, the event stream, and the log and span
// search endpoints.
type DatadogClient struct {
	v1Base     string
	v2Base     string
	apiKey     string
	appKey     string
	maxRetries int
	httpClient *http.Client
}

// NewDatadogClient constructs a client for the given site. The site is
// either a bare Datadog domain such as "datadoghq.com" or a full base URL,
// which lets tests and local stand-ins take the place of the real API.
func NewDatadogClient(site, apiKey, appKey string, timeout time.Duration, maxRetries int) *DatadogClient {
	v1, v2 := baseURLs(site)
	return &DatadogClient{
		v1Base:     v1,
		v2Base:     v2,
		apiKey:     apiKey,
		appKey:     appKey,
		maxRetries: maxRetries,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func baseURLs(site string) (string, string) {
	if strings.HasPrefix(site, "http://") || strings.HasPrefix(site, "https://") {
		root := strings.TrimRight(site, "/")
		return root + "/api/v1", root + "/api/v2"
	}
	return "https://api." + site + "/api/v1", "https://api." + site + "/api/v2"
}

// GetMonitor fetches one monitor definition.
func (c *DatadogClient) GetMonitor(ctx context.Context, monitorID int64) (*models.Monitor, error) {
	endpoint := c.v1Base + "/monitor/" + strconv.FormatInt(monitorID, 10)

	var monitor models.Monitor
	if err := c.doJSON(ctx, "monitor", http.MethodGet, endpoint, nil, &monitor); err != nil {
		return nil, err
	}
	return &monitor, nil
}

// QueryMetrics runs a v1 timeseries query over [start, end].
func (c *DatadogClient) QueryMetrics(ctx context.Context, query string, start, end time.Time) (models.MetricsResponse, error) {
	params := url.Values{}
	params.Set("from", strconv.FormatInt(start.Unix(), 10))
	params.Set("to", strconv.FormatInt(end.Unix(), 10))
	params.Set("query", query)
	endpoint := c.v1Base + "/query?" + params.Encode()

	var resp models.MetricsResponse
	if err := c.doJSON(ctx, "metrics_query", http.MethodGet, endpoint, nil, &resp); err != nil {
		return models.MetricsResponse{}, err
	}
	return resp, nil
}

// SearchEvents reads the event stream over [start, end]. An empty tagQuery
// fetches everything in the range.
func (c *DatadogClient) SearchEvents(ctx context.Context, start, end time.Time, tagQuery string) (models.EventsResponse, error) {
	params := url.Values{}
	params.Set("start", strconv.FormatInt(start.Unix(), 10))
	params.Set("end", strconv.FormatInt(end.Unix(), 10))
	if tagQuery != "" {
		params.Set("tags", tagQuery)
	}
	endpoint := c.v1Base + "/events?" + params.Encode()

	var resp models.EventsResponse
	if err := c.doJSON(ctx, "events", http.MethodGet, endpoint, nil, &resp); err != nil {
		return models.EventsResponse{}, err
	}
	return resp, nil
}

// SearchLogs pages through the v2 log search for the query over
// [start, end], at most limit records per page and maxPages pages.
func (c *DatadogClient) SearchLogs(ctx context.Context, query string, start, end time.Time, limit, maxPages int) ([]models.RawRecord, error) {
	return c.searchRecords(ctx, "logs_search", c.v2Base+"/logs/events/search", query, start, end, limit, maxPages)
}

// SearchSpans pages through the v2 span search, mirroring SearchLogs.
func (c *DatadogClient) SearchSpans(ctx context.Context, query string, start, end time.Time, limit, maxPages int) ([]models.RawRecord, error) {
	return c.searchRecords(ctx, "spans_search", c.v2Base+"/spans/events/search", query, start, end, limit, maxPages)
}

type searchRequest struct {
	Filter searchFilter `json:"filter"`
	Sort   string       `json:"sort"`
	Page   searchPage   `json:"page"`
}

type searchFilter struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Query string `json:"query"`
}

type searchPage struct {
	Limit  int    `json:"limit"`
	Cursor string `json:"cursor,omitempty"`
}

type searchResponse struct {
	Data []struct {
		ID         string         `json:"id"`
		Attributes map[string]any `json:"attributes"`
	} `json:"data"`
	Meta struct {
		Page struct {
			After string `json:"after"`
		} `json:"page"`
	} `json:"meta"`
}

func (c *DatadogClient) searchRecords(ctx context.Context, label, endpoint, query string, start, end time.Time, limit, maxPages int) ([]models.RawRecord, error) {
	if limit <= 0 || limit > maxPageLimit {
		limit = maxPageLimit
	}
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	records := []models.RawRecord{}
	cursor := ""
	for page := 0; page < maxPages; page++ {
		body := searchRequest{
			Filter: searchFilter{
				From:  windows.FormatISO(start),
				To:    windows.FormatISO(end),
				Query: query,
			},
			Sort: "timestamp",
			Page: searchPage{Limit: limit, Cursor: cursor},
		}

		var resp searchResponse
		if err := c.doJSON(ctx, label, http.MethodPost, endpoint, body, &resp); err != nil {
			return nil, err
		}
		for _, item := range resp.Data {
			records = append(records, models.RawRecord{ID: item.ID, Attributes: item.Attributes})
		}

		if resp.Meta.Page.After == "" {
			break
		}
		cursor = resp.Meta.Page.After
	}
	return records, nil
}

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// doJSON issues one API call with retries. Transport errors and retryable
// statuses back off exponentially up to 8s; any other non-2xx status fails
// fast with an APIError.
func (c *DatadogClient) doJSON(ctx context.Context, label, method, endpoint string, payload any, out any) error {
	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = data
	}

	attempts := c.maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepWithContext(ctx, backoffDelay(attempt-1)); err != nil {
				return err
			}
		}

		data, status, err := c.roundTrip(ctx, method, endpoint, body)
		if err != nil {
			metrics.ObserveDatadogRequest(label, metrics.OutcomeError)
			lastErr = err
			continue
		}
		if status >= 200 && status < 300 {
			metrics.ObserveDatadogRequest(label, metrics.OutcomeSuccess)
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}

		metrics.ObserveDatadogRequest(label, metrics.OutcomeError)
		if retryableStatus[status] {
			lastErr = fmt.Errorf("retryable status=%d body=%s", status, utils.TruncateRunes(string(data), maxRetryBody))
			continue
		}
		return &APIError{StatusCode: status, Body: utils.TruncateRunes(string(data), maxErrorBody)}
	}
	return fmt.Errorf("%w: %s %s: %v", ErrRequestFailed, method, endpoint, lastErr)
}

func (c *DatadogClient) roundTrip(ctx context.Context, method, endpoint string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("DD-API-KEY", c.apiKey)
	req.Header.Set("DD-APPLICATION-KEY", c.appKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return data, resp.StatusCode, nil
}

func backoffDelay(attempt int) time.Duration {
	d := 500 * time.Millisecond << uint(attempt)
	if d <= 0 || d > 8*time.Second {
		d = 8 * time.Second
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
