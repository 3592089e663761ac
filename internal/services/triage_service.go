package services

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/faultlinehq/faultline/internal/cache"
	"github.com/faultlinehq/faultline/internal/metrics"
	"github.com/faultlinehq/faultline/internal/models"
	"github.com/faultlinehq/faultline/internal/utils"
	"github.com/faultlinehq/faultline/pkg/logger"
)

// TriagePipeline runs seeded triage analyses end to end.
type TriagePipeline interface {
	FromMonitor(ctx context.Context, req models.MonitorTriageRequest) (*models.Report, error)
	FromLogs(ctx context.Context, req models.LogsTriageRequest) (*models.Report, error)
	FromService(ctx context.Context, req models.ServiceTriageRequest) (*models.Report, error)
}

// TriageService fronts the pipeline for serve mode: it validates requests,
// serves cached reports when an identical request was answered recently, and
// records run metrics and latency.
type TriageService struct {
	logger    logger.Logger
	pipeline  TriagePipeline
	cache     cache.Provider
	reportTTL time.Duration
	latencies *utils.LatencyTracker
}

// NewTriageService constructs the service facade. A nil cache provider
// disables caching via the noop provider.
func NewTriageService(log logger.Logger, pipeline TriagePipeline, provider cache.Provider, reportTTL time.Duration) *TriageService {
	if log == nil {
		log = logger.NewNop()
	}
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	return &TriageService{
		logger:    log,
		pipeline:  pipeline,
		cache:     provider,
		reportTTL: reportTTL,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// FromMonitor runs a monitor-seeded triage. It satisfies TriagePipeline, so
// transports can treat the service as a caching pipeline.
func (s *TriageService) FromMonitor(ctx context.Context, req models.MonitorTriageRequest) (*models.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.run(ctx, string(models.SeedMonitor), req, func(ctx context.Context) (*models.Report, error) {
		return s.pipeline.FromMonitor(ctx, req)
	})
}

// FromLogs runs a log-query-seeded triage.
func (s *TriageService) FromLogs(ctx context.Context, req models.LogsTriageRequest) (*models.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.run(ctx, string(models.SeedLogs), req, func(ctx context.Context) (*models.Report, error) {
		return s.pipeline.FromLogs(ctx, req)
	})
}

// FromService runs a service-seeded triage.
func (s *TriageService) FromService(ctx context.Context, req models.ServiceTriageRequest) (*models.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.run(ctx, string(models.SeedService), req, func(ctx context.Context) (*models.Report, error) {
		return s.pipeline.FromService(ctx, req)
	})
}

// LatencyP95 returns the current p95 run latency over recent samples.
func (s *TriageService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

// run serves the request from cache when possible, otherwise invokes the
// pipeline and stores the result. The cache key is derived from the request
// after defaults are filled, so equivalent requests share an entry.
func (s *TriageService) run(ctx context.Context, seed string, input any, invoke func(context.Context) (*models.Report, error)) (*models.Report, error) {
	if s.pipeline == nil {
		return nil, errors.New("triage pipeline not configured")
	}

	key, keyErr := cacheKey(seed, input)
	if keyErr == nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var report models.Report
			if err := json.Unmarshal(data, &report); err == nil {
				s.logger.Debug("triage served from cache", "seed", seed, "key", key)
				return &report, nil
			}
			// Unreadable entry; rerun and overwrite it below.
		}
	}

	start := time.Now()
	report, err := invoke(ctx)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveTriage(seed, duration, metrics.OutcomeError)
		s.logger.Error("triage run failed", "seed", seed, "error", err)
		return nil, utils.NewAppError("triage."+seed, "pipeline run failed", err)
	}
	metrics.ObserveTriage(seed, duration, metrics.OutcomeSuccess)

	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("triage latency", "p95", s.latencies.Percentile(95), "samples", count)
	}

	if keyErr == nil {
		if payload, err := json.Marshal(report); err == nil {
			if err := s.cache.Set(ctx, key, payload, s.reportTTL); err != nil {
				s.logger.Warn("triage cache write failed", "key", key, "error", err)
			}
		}
	}

	return report, nil
}

func cacheKey(seed string, input any) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("triage:%s:%x", seed, sum[:16]), nil
}
