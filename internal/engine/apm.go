package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/faultlinehq/faultline/internal/extractors"
	"github.com/faultlinehq/faultline/internal/models"
	"github.com/faultlinehq/faultline/internal/scope"
	"github.com/faultlinehq/faultline/internal/windows"
)

const (
	maxEndpointCandidates   = 5
	maxDependencyCandidates = 7
	maxComparisonRows       = 10
)

type endpointRow struct {
	resource string
	incident *models.EndpointStats
	baseline *models.EndpointStats
	delta    float64
}

type dependencyRow struct {
	dependency string
	incident   *models.DependencyStats
	baseline   *models.DependencyStats
	durDelta   float64
	errDelta   float64
}

// apmAttribution compares the service's spans across the two windows and
// turns endpoint regressions and downstream suspects into candidates.
// Attribution needs both a service and an env; a failed span search degrades
// to an error block rather than failing the run.
func (p *Pipeline) apmAttribution(ctx context.Context, sc scope.Scope, pair windows.Pair, mode string) (any, []models.Candidate) {
	if sc.Service == "" || sc.Env == "" {
		return models.APMDisabled{Enabled: false, Reason: "missing service/env"}, nil
	}

	// Keep the span query broad; partition by kind in code.
	query := fmt.Sprintf("service:%s env:%s", sc.Service, sc.Env)
	incRaw, baseRaw, err := p.spanPair(ctx, query, pair)
	if err != nil {
		p.logger.Warn("apm span search failed", "query", query, "error", err)
		return models.APMError{Enabled: true, Error: err.Error()}, nil
	}

	incSpans := extractors.NormalizeSpans(incRaw)
	baseSpans := extractors.NormalizeSpans(baseRaw)

	incServer := filterSpanKind(incSpans, "server")
	baseServer := filterSpanKind(baseSpans, "server")
	incClient := filterSpanKind(incSpans, "client")
	baseClient := filterSpanKind(baseSpans, "client")

	// Unmarked traces have no server spans; fall back to everything.
	endpointsInc := extractors.GroupEndpointStats(spansOrAll(incServer, incSpans))
	endpointsBase := extractors.GroupEndpointStats(spansOrAll(baseServer, baseSpans))
	depsInc := extractors.GroupDependencyStats(incClient)
	depsBase := extractors.GroupDependencyStats(baseClient)

	endpointRows, endpointCandidates := endpointRegressions(endpointsInc, endpointsBase, mode)
	depRows, depCandidates := dependencySuspects(depsInc, depsBase)

	candidates := append(endpointCandidates, depCandidates...)
	sortCandidates(candidates)

	findings := models.APMFindings{
		Enabled: true,
		Query:   query,
		Counts: models.APMCounts{
			IncidentSpans:       len(incSpans),
			BaselineSpans:       len(baseSpans),
			IncidentServerSpans: len(incServer),
			BaselineServerSpans: len(baseServer),
			IncidentClientSpans: len(incClient),
			BaselineClientSpans: len(baseClient),
		},
		TopEndpoints:    endpointComparisons(endpointRows, maxComparisonRows),
		TopDependencies: dependencyComparisons(depRows, maxComparisonRows),
	}
	return findings, candidates
}

// spanPair fetches one span query over both windows.
func (p *Pipeline) spanPair(ctx context.Context, query string, pair windows.Pair) (incident, baseline []models.RawRecord, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		incident, err = p.client.SearchSpans(gctx, query, pair.Incident.Start, pair.Incident.End, searchPageLimit, searchMaxPages)
		if err != nil {
			return fmt.Errorf("incident spans: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		baseline, err = p.client.SearchSpans(gctx, query, pair.Baseline.Start, pair.Baseline.End, searchPageLimit, searchMaxPages)
		if err != nil {
			return fmt.Errorf("baseline spans: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return incident, baseline, nil
}

// endpointRegressions ranks incident endpoints by their delta against the
// baseline, p95 latency by default or error rate in errors mode, and turns
// the worst regressions into candidates.
func endpointRegressions(incident, baseline []extractors.EndpointGroup, mode string) ([]endpointRow, []models.Candidate) {
	baseByResource := make(map[string]*models.EndpointStats, len(baseline))
	for i := range baseline {
		baseByResource[baseline[i].Resource] = &baseline[i].Stats
	}

	rows := make([]endpointRow, 0, len(incident))
	for i := range incident {
		inc := &incident[i].Stats
		base := baseByResource[incident[i].Resource]
		var delta float64
		if mode == models.ModeErrors {
			delta = inc.ErrorRate - baseErrorRate(base)
		} else {
			delta = floatOrZero(inc.P95Ms) - baseP95(base)
		}
		rows = append(rows, endpointRow{
			resource: incident[i].Resource,
			incident: inc,
			baseline: base,
			delta:    delta,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].delta > rows[j].delta
	})

	denom := 500.0
	if mode == models.ModeErrors {
		denom = 0.5
	}
	var candidates []models.Candidate
	limit := maxEndpointCandidates
	if len(rows) < limit {
		limit = len(rows)
	}
	for _, row := range rows[:limit] {
		if row.delta <= 0 {
			continue
		}
		var evidenceBase any = struct{}{}
		if row.baseline != nil {
			evidenceBase = row.baseline
		}
		candidates = append(candidates, models.Candidate{
			Kind:  models.KindEndpoint,
			Title: "Endpoint regression: " + row.resource,
			Score: clamp(row.delta/denom, 0, 0.95),
			Evidence: models.EndpointEvidence{
				Incident: row.incident,
				Baseline: evidenceBase,
				Delta:    row.delta,
			},
		})
	}
	return rows, candidates
}

// dependencySuspects ranks downstream dependencies by total-duration growth,
// error-rate growth on ties, and scores the worst offenders.
func dependencySuspects(incident, baseline []extractors.DependencyGroup) ([]dependencyRow, []models.Candidate) {
	baseByDep := make(map[string]*models.DependencyStats, len(baseline))
	for i := range baseline {
		baseByDep[baseline[i].Dependency] = &baseline[i].Stats
	}

	rows := make([]dependencyRow, 0, len(incident))
	for i := range incident {
		inc := &incident[i].Stats
		base := baseByDep[incident[i].Dependency]
		var baseDur, baseErr float64
		if base != nil {
			baseDur = floatOrZero(base.TotalDurationMs)
			baseErr = base.ErrorRate
		}
		rows = append(rows, dependencyRow{
			dependency: incident[i].Dependency,
			incident:   inc,
			baseline:   base,
			durDelta:   floatOrZero(inc.TotalDurationMs) - baseDur,
			errDelta:   inc.ErrorRate - baseErr,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].durDelta != rows[j].durDelta {
			return rows[i].durDelta > rows[j].durDelta
		}
		return rows[i].errDelta > rows[j].errDelta
	})

	var candidates []models.Candidate
	limit := maxDependencyCandidates
	if len(rows) < limit {
		limit = len(rows)
	}
	for _, row := range rows[:limit] {
		if row.durDelta <= 0 && row.errDelta <= 0 {
			continue
		}
		var evidenceBase any = struct{}{}
		if row.baseline != nil {
			evidenceBase = row.baseline
		}
		candidates = append(candidates, models.Candidate{
			Kind:  models.KindDependency,
			Title: "Downstream suspect: " + row.dependency,
			Score: clamp(row.durDelta/2000.0+row.errDelta/0.5, 0, 0.99),
			Evidence: models.DependencyEvidence{
				Incident:        row.incident,
				Baseline:        evidenceBase,
				DurationDeltaMs: row.durDelta,
				ErrorRateDelta:  row.errDelta,
			},
		})
	}
	return rows, candidates
}

func endpointComparisons(rows []endpointRow, n int) []models.EndpointComparison {
	if len(rows) > n {
		rows = rows[:n]
	}
	out := make([]models.EndpointComparison, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.EndpointComparison{
			Resource: row.resource,
			Incident: row.incident,
			Baseline: row.baseline,
		})
	}
	return out
}

func dependencyComparisons(rows []dependencyRow, n int) []models.DependencyComparison {
	if len(rows) > n {
		rows = rows[:n]
	}
	out := make([]models.DependencyComparison, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.DependencyComparison{
			Dependency: row.dependency,
			Incident:   row.incident,
			Baseline:   row.baseline,
		})
	}
	return out
}

func filterSpanKind(spans []models.SpanView, kind string) []models.SpanView {
	out := make([]models.SpanView, 0, len(spans))
	for _, s := range spans {
		if strings.ToLower(s.SpanKind) == kind {
			out = append(out, s)
		}
	}
	return out
}

func spansOrAll(preferred, all []models.SpanView) []models.SpanView {
	if len(preferred) > 0 {
		return preferred
	}
	return all
}

func baseErrorRate(s *models.EndpointStats) float64 {
	if s == nil {
		return 0
	}
	return s.ErrorRate
}

func baseP95(s *models.EndpointStats) float64 {
	if s == nil {
		return 0
	}
	return floatOrZero(s.P95Ms)
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
