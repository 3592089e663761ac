package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/faultlinehq/faultline/internal/extractors"
	"github.com/faultlinehq/faultline/internal/models"
	"github.com/faultlinehq/faultline/internal/scope"
	"github.com/faultlinehq/faultline/internal/windows"
	"github.com/faultlinehq/faultline/pkg/logger"
)

const (
	searchPageLimit = 1000
	searchMaxPages  = 2
	maxCandidates   = 20
	maxEvents       = 20
)

// TelemetryClient defines the Datadog read surface the pipeline consumes.
type TelemetryClient interface {
	GetMonitor(ctx context.Context, monitorID int64) (*models.Monitor, error)
	QueryMetrics(ctx context.Context, query string, start, end time.Time) (models.MetricsResponse, error)
	SearchEvents(ctx context.Context, start, end time.Time, tagQuery string) (models.EventsResponse, error)
	SearchLogs(ctx context.Context, query string, start, end time.Time, limit, maxPages int) ([]models.RawRecord, error)
	SearchSpans(ctx context.Context, query string, start, end time.Time, limit, maxPages int) ([]models.RawRecord, error)
}

// Pipeline runs the triage flow: derive the window pair, pull the seed's
// signals, cluster and score, and assemble the report.
type Pipeline struct {
	logger logger.Logger
	client TelemetryClient
	rules  *RuleEngine
	site   string
	now    func() time.Time
}

// NewPipeline constructs a triage pipeline. The rule engine may be nil, in
// which case only the built-in recommendation heuristics apply.
func NewPipeline(log logger.Logger, client TelemetryClient, rules *RuleEngine, site string) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{
		logger: log,
		client: client,
		rules:  rules,
		site:   site,
		now:    time.Now,
	}
}

// FromMonitor triages a monitor alert: the monitor's own query is the
// symptom, its tags seed the scope, and error logs plus APM spans supply the
// candidates.
func (p *Pipeline) FromMonitor(ctx context.Context, req models.MonitorTriageRequest) (*models.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	pair, err := windows.EndingAt(req.TriggerTS, req.WindowMinutes, req.BaselineMinutes, p.now())
	if err != nil {
		return nil, err
	}

	monitor, err := p.client.GetMonitor(ctx, req.MonitorID)
	if err != nil {
		return nil, fmt.Errorf("fetch monitor: %w", err)
	}
	sc := scope.FromMonitorTags(monitor.Tags)
	query := strings.TrimSpace(monitor.Query)
	p.logger.Debug("monitor triage started", "monitor_id", req.MonitorID, "service", sc.Service)

	baseSum, incSum, err := p.metricPair(ctx, query, pair)
	if err != nil {
		return nil, err
	}
	symptom := models.Symptom{
		Type:             symptomTypeFromQuery(query),
		QueryOrSignature: query,
		BaselineValue:    baseSum.Value,
		IncidentValue:    incSum.Value,
		PercentChange:    extractors.PercentChange(baseSum.Value, incSum.Value),
		PeakTS:           epochToISO(incSum.PeakTS),
		PeakValue:        incSum.PeakValue,
	}

	logQuery := defaultLogQuery(sc)
	incidentLogs, baselineLogs, err := p.logPair(ctx, logQuery, pair)
	if err != nil {
		return nil, err
	}
	topClusters, candidates := clusterAndScore(incidentLogs, baselineLogs, 10)

	apmFindings, apmCandidates := p.apmAttribution(ctx, sc, pair, models.ModeLatency)
	candidates = append(candidates, apmCandidates...)
	sortCandidates(candidates)

	events, err := p.incidentEvents(ctx, sc, pair)
	if err != nil {
		return nil, err
	}

	findings := models.Findings{
		Monitor: &models.MonitorInfo{
			ID:    monitor.ID,
			Name:  monitor.Name,
			Type:  monitor.Type,
			Query: query,
			Tags:  monitor.Tags,
		},
		LogQueryUsed: logQuery,
		LogClusters:  topClusters,
		APM:          apmFindings,
		Events:       events,
		Candidates:   capCandidates(candidates),
	}

	return &models.Report{
		Meta: models.Meta{
			SeedType:    models.SeedMonitor,
			GeneratedAt: windows.FormatISO(p.now()),
			Site:        p.site,
			Input: models.MonitorInput{
				MonitorID:       req.MonitorID,
				TriggerTS:       optionalString(req.TriggerTS),
				WindowMinutes:   req.WindowMinutes,
				BaselineMinutes: req.BaselineMinutes,
			},
		},
		Windows:         pair.ToInfo(),
		Scope:           sc.ToInfo(),
		Symptoms:        []models.Symptom{symptom},
		Findings:        findings,
		Recommendations: p.recommend(symptom, topClusters, events, sc, findings.Candidates),
	}, nil
}

// FromLogs triages a log query: the query's volume delta is the symptom and
// the scope is inferred from the incident records themselves.
func (p *Pipeline) FromLogs(ctx context.Context, req models.LogsTriageRequest) (*models.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	pair, err := windows.EndingAt(req.AnchorTS, req.WindowMinutes, req.BaselineMinutes, p.now())
	if err != nil {
		return nil, err
	}

	incidentLogs, baselineLogs, err := p.logPair(ctx, req.LogQuery, pair)
	if err != nil {
		return nil, err
	}

	var sc scope.Scope
	if len(incidentLogs) > 0 {
		sc = scope.FromLogs(incidentLogs)
	}
	p.logger.Debug("logs triage started", "query", req.LogQuery, "incident_records", len(incidentLogs))

	topClusters, candidates := clusterAndScore(incidentLogs, baselineLogs, 15)

	incCount := len(incidentLogs)
	baseCount := len(baselineLogs)
	incValue := float64(incCount)
	baseValue := float64(baseCount)
	var pcBaseline *float64
	if baseCount > 0 {
		pcBaseline = &baseValue
	}
	symptom := models.Symptom{
		Type:             models.SymptomLogSignature,
		QueryOrSignature: req.LogQuery,
		BaselineValue:    &baseValue,
		IncidentValue:    &incValue,
		PercentChange:    extractors.PercentChange(pcBaseline, &incValue),
	}

	apmFindings, apmCandidates := p.apmAttribution(ctx, sc, pair, models.ModeLatency)
	candidates = append(candidates, apmCandidates...)
	sortCandidates(candidates)

	events, err := p.incidentEvents(ctx, sc, pair)
	if err != nil {
		return nil, err
	}

	findings := models.Findings{
		LogQuery:         req.LogQuery,
		IncidentLogCount: &incCount,
		BaselineLogCount: &baseCount,
		LogClusters:      topClusters,
		APM:              apmFindings,
		Events:           events,
		Candidates:       capCandidates(candidates),
	}

	return &models.Report{
		Meta: models.Meta{
			SeedType:    models.SeedLogs,
			GeneratedAt: windows.FormatISO(p.now()),
			Site:        p.site,
			Input: models.LogsInput{
				LogQuery:        req.LogQuery,
				AnchorTS:        optionalString(req.AnchorTS),
				WindowMinutes:   req.WindowMinutes,
				BaselineMinutes: req.BaselineMinutes,
			},
		},
		Windows:         pair.ToInfo(),
		Scope:           sc.ToInfo(),
		Symptoms:        []models.Symptom{symptom},
		Findings:        findings,
		Recommendations: p.recommend(symptom, topClusters, events, sc, findings.Candidates),
	}, nil
}

// FromService triages a service over an explicit time range, probing common
// APM metric names for the symptom.
func (p *Pipeline) FromService(ctx context.Context, req models.ServiceTriageRequest) (*models.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	pair, err := windows.Explicit(req.Start, req.End, p.now())
	if err != nil {
		return nil, err
	}

	sc := scope.Scope{Service: req.Service, Env: req.Env}
	p.logger.Debug("service triage started", "service", req.Service, "env", req.Env, "mode", req.Mode)

	symptom := p.serviceSymptom(ctx, sc, pair, req.Mode)

	logQuery := defaultLogQuery(sc)
	if req.Mode == models.ModeErrors {
		logQuery = defaultErrorLogQuery(sc)
	}
	incidentLogs, baselineLogs, err := p.logPair(ctx, logQuery, pair)
	if err != nil {
		return nil, err
	}
	topClusters, candidates := clusterAndScore(incidentLogs, baselineLogs, 15)

	apmFindings, apmCandidates := p.apmAttribution(ctx, sc, pair, req.Mode)
	candidates = append(candidates, apmCandidates...)
	sortCandidates(candidates)

	events, err := p.incidentEvents(ctx, sc, pair)
	if err != nil {
		return nil, err
	}

	incCount := len(incidentLogs)
	baseCount := len(baselineLogs)
	findings := models.Findings{
		Service: &models.ServiceInfo{
			Service: req.Service,
			Env:     req.Env,
			Mode:    req.Mode,
		},
		MetricSymptom:    &symptom,
		LogQueryUsed:     logQuery,
		IncidentLogCount: &incCount,
		BaselineLogCount: &baseCount,
		LogClusters:      topClusters,
		APM:              apmFindings,
		Events:           events,
		Candidates:       capCandidates(candidates),
	}

	return &models.Report{
		Meta: models.Meta{
			SeedType:    models.SeedService,
			GeneratedAt: windows.FormatISO(p.now()),
			Site:        p.site,
			Input: models.ServiceInput{
				Service: req.Service,
				Env:     req.Env,
				Start:   req.Start,
				End:     req.End,
				Mode:    req.Mode,
			},
		},
		Windows:         pair.ToInfo(),
		Scope:           sc.ToInfo(),
		Symptoms:        []models.Symptom{symptom},
		Findings:        findings,
		Recommendations: p.recommend(symptom, topClusters, events, sc, findings.Candidates),
	}, nil
}

// metricPair summarizes one metric query over the baseline and incident
// windows.
func (p *Pipeline) metricPair(ctx context.Context, query string, pair windows.Pair) (base, inc extractors.MetricSummary, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := p.client.QueryMetrics(gctx, query, pair.Baseline.Start, pair.Baseline.End)
		if err != nil {
			return fmt.Errorf("baseline metrics: %w", err)
		}
		base = extractors.SummarizeMetricsQuery(resp)
		return nil
	})
	g.Go(func() error {
		resp, err := p.client.QueryMetrics(gctx, query, pair.Incident.Start, pair.Incident.End)
		if err != nil {
			return fmt.Errorf("incident metrics: %w", err)
		}
		inc = extractors.SummarizeMetricsQuery(resp)
		return nil
	})
	if err := g.Wait(); err != nil {
		return extractors.MetricSummary{}, extractors.MetricSummary{}, err
	}
	return base, inc, nil
}

// logPair fetches one log query over both windows.
func (p *Pipeline) logPair(ctx context.Context, query string, pair windows.Pair) (incident, baseline []models.RawRecord, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		incident, err = p.client.SearchLogs(gctx, query, pair.Incident.Start, pair.Incident.End, searchPageLimit, searchMaxPages)
		if err != nil {
			return fmt.Errorf("incident logs: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		baseline, err = p.client.SearchLogs(gctx, query, pair.Baseline.Start, pair.Baseline.End, searchPageLimit, searchMaxPages)
		if err != nil {
			return fmt.Errorf("baseline logs: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return incident, baseline, nil
}

func (p *Pipeline) incidentEvents(ctx context.Context, sc scope.Scope, pair windows.Pair) ([]models.EventItem, error) {
	resp, err := p.client.SearchEvents(ctx, pair.Incident.Start, pair.Incident.End, sc.EventTagQuery())
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	return extractors.ParseEvents(resp, maxEvents), nil
}

// clusterAndScore clusters the incident logs against the baseline, ranks the
// clusters, and scores the top ones as candidates.
func clusterAndScore(incident, baseline []models.RawRecord, rankLimit int) ([]models.LogCluster, []models.Candidate) {
	clusters := extractors.MergeBaselineCounts(extractors.ClusterLogs(incident), baseline)
	top := extractors.RankClusters(clusters, rankLimit)
	return top, scoreLogClusters(top, 10)
}

// serviceSymptom probes common APM metric name patterns and keeps the first
// query that returns data in either window. A failed probe moves on to the
// next pattern; if none match, a placeholder symptom is returned.
func (p *Pipeline) serviceSymptom(ctx context.Context, sc scope.Scope, pair windows.Pair, mode string) models.Symptom {
	var tags []string
	if sc.Service != "" {
		tags = append(tags, "service:"+sc.Service)
	}
	if sc.Env != "" {
		tags = append(tags, "env:"+sc.Env)
	}
	tagExpr := "{" + strings.Join(tags, ",") + "}"

	type probe struct {
		query string
		stype models.SymptomType
	}
	var probes []probe
	if mode == models.ModeErrors {
		probes = []probe{
			{fmt.Sprintf("errors_rate: sum:trace.%s.request.errors%s.as_count() / sum:trace.%s.request.hits%s.as_count()", sc.Service, tagExpr, sc.Service, tagExpr), models.SymptomErrorRate},
			{fmt.Sprintf("errors: sum:trace.%s.request.errors%s.as_count()", sc.Service, tagExpr), models.SymptomErrorRate},
		}
	} else {
		probes = []probe{
			{fmt.Sprintf("p95:trace.%s.request.duration%s", sc.Service, tagExpr), models.SymptomLatency},
			{fmt.Sprintf("p95:trace.http.request.duration%s", tagExpr), models.SymptomLatency},
		}
	}

	for _, pr := range probes {
		baseSum, incSum, err := p.metricPair(ctx, pr.query, pair)
		if err != nil {
			p.logger.Debug("service metric probe failed", "query", pr.query, "error", err)
			continue
		}
		if baseSum.PointCount == 0 && incSum.PointCount == 0 {
			continue
		}
		return models.Symptom{
			Type:             pr.stype,
			QueryOrSignature: pr.query,
			BaselineValue:    baseSum.Value,
			IncidentValue:    incSum.Value,
			PercentChange:    extractors.PercentChange(baseSum.Value, incSum.Value),
			PeakTS:           epochToISO(incSum.PeakTS),
			PeakValue:        incSum.PeakValue,
		}
	}

	return models.Symptom{
		Type:             models.SymptomMetric,
		QueryOrSignature: "(no matching service metric found)",
	}
}

func (p *Pipeline) recommend(symptom models.Symptom, clusters []models.LogCluster, events []models.EventItem, sc scope.Scope, candidates []models.Candidate) []string {
	recs := recommendHeuristics(symptom, clusters, events)
	if p.rules != nil {
		recs = appendUnique(recs, p.rules.Recommend(sc.Service, candidates)...)
	}
	return recs
}

func sortCandidates(candidates []models.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}

func capCandidates(candidates []models.Candidate) []models.Candidate {
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return candidates
}

func symptomTypeFromQuery(query string) models.SymptomType {
	q := strings.ToLower(query)
	for _, k := range []string{"p95", "p99", "latency", "duration"} {
		if strings.Contains(q, k) {
			return models.SymptomLatency
		}
	}
	for _, k := range []string{"error", "5xx", "exceptions"} {
		if strings.Contains(q, k) {
			return models.SymptomErrorRate
		}
	}
	return models.SymptomMetric
}

// defaultLogQuery builds a best-effort error log query scoped to the service
// and env when known.
func defaultLogQuery(sc scope.Scope) string {
	var parts []string
	if sc.Service != "" {
		parts = append(parts, "service:"+sc.Service)
	}
	if sc.Env != "" {
		parts = append(parts, "env:"+sc.Env)
	}
	parts = append(parts, "(@status:error OR status:error OR level:error OR @level:error OR @http.status_code:[500 TO 599])")
	return strings.Join(parts, " ")
}

// defaultErrorLogQuery is the errors-mode variant, which matches error
// payloads rather than status fields alone.
func defaultErrorLogQuery(sc scope.Scope) string {
	var parts []string
	if sc.Service != "" {
		parts = append(parts, "service:"+sc.Service)
	}
	if sc.Env != "" {
		parts = append(parts, "env:"+sc.Env)
	}
	parts = append(parts, "(error OR @error.message:* OR @error.stack:* OR exception OR level:error OR @status:error)")
	return strings.Join(parts, " ")
}

func epochToISO(ts *int64) *string {
	if ts == nil {
		return nil
	}
	s := windows.FormatISO(time.Unix(*ts, 0))
	return &s
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
