package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/faultlinehq/faultline/internal/api"
	"github.com/faultlinehq/faultline/internal/cache"
	"github.com/faultlinehq/faultline/internal/metrics"
	"github.com/faultlinehq/faultline/internal/services"
	"github.com/faultlinehq/faultline/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the triage HTTP API",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	HandleError(err, "load config")

	log := logger.New(cfg.Logging.Level, cfg.Logging.JSON)
	log.Info("starting faultline", "address", cfg.Server.Address)

	HandleError(metrics.Register(prometheus.DefaultRegisterer), "register metrics")

	var cacheProvider cache.Provider = cache.NoopProvider{}
	var redisCloser cache.Provider
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewRedisProvider(cache.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			log.Warn("report cache unavailable", "error", err)
		} else {
			cacheProvider = provider
			redisCloser = provider
		}
	}
	if redisCloser != nil {
		defer redisCloser.Close()
	}

	pipeline, err := buildPipeline(cfg, log)
	HandleError(err, "build pipeline")

	svc := services.NewTriageService(log, pipeline, cacheProvider, cfg.Cache.ReportTTL)
	server := api.NewServer(cfg.Server, log, svc)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			log.Info("metrics server listening", "address", cfg.Server.MetricsAddress)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server exited", "error", err)
				stop()
			}
		}()
	}

	if err := server.Start(ctx); err != nil {
		log.Error("triage API exited", "error", err)
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server shutdown", "error", err)
		}
		cancelMetrics()
	}

	log.Info("faultline stopped")
}
