package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/faultlinehq/faultline/internal/models"
	"github.com/faultlinehq/faultline/pkg/logger"
)

var (
	logQuery            string
	anchorTS            string
	logsWindowMinutes   int
	logsBaselineMinutes int
)

var fromLogsCmd = &cobra.Command{
	Use:   "from-logs",
	Short: "Triage an incident seeded by a log search query",
	Run:   runFromLogs,
}

func init() {
	fromLogsCmd.Flags().StringVar(&logQuery, "log-query", "", "Datadog log search query (required)")
	fromLogsCmd.Flags().StringVar(&anchorTS, "anchor-ts", "", "Anchor time, RFC 3339 (default: now)")
	fromLogsCmd.Flags().IntVar(&logsWindowMinutes, "window-minutes", 30, "Incident window length in minutes")
	fromLogsCmd.Flags().IntVar(&logsBaselineMinutes, "baseline-minutes", 30, "Baseline window length in minutes")
	_ = fromLogsCmd.MarkFlagRequired("log-query")
}

func runFromLogs(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	HandleError(err, "load config")

	log := logger.New(cfg.Logging.Level, cfg.Logging.JSON)
	pipeline, err := buildPipeline(cfg, log)
	HandleError(err, "build pipeline")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := pipeline.FromLogs(ctx, models.LogsTriageRequest{
		LogQuery:        logQuery,
		AnchorTS:        anchorTS,
		WindowMinutes:   logsWindowMinutes,
		BaselineMinutes: logsBaselineMinutes,
	})
	HandleError(err, "triage from logs")

	HandleError(writeReport(report, log), "write report")
}
