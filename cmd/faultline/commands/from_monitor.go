package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/faultlinehq/faultline/internal/models"
	"github.com/faultlinehq/faultline/pkg/logger"
)

var (
	monitorID              int64
	triggerTS              string
	monitorWindowMinutes   int
	monitorBaselineMinutes int
)

var fromMonitorCmd = &cobra.Command{
	Use:   "from-monitor",
	Short: "Triage an incident seeded by a Datadog monitor",
	Run:   runFromMonitor,
}

func init() {
	fromMonitorCmd.Flags().Int64Var(&monitorID, "monitor-id", 0, "Datadog monitor ID (required)")
	fromMonitorCmd.Flags().StringVar(&triggerTS, "trigger-ts", "", "Trigger time, RFC 3339 (default: now)")
	fromMonitorCmd.Flags().IntVar(&monitorWindowMinutes, "window-minutes", 60, "Incident window length in minutes")
	fromMonitorCmd.Flags().IntVar(&monitorBaselineMinutes, "baseline-minutes", 60, "Baseline window length in minutes")
	_ = fromMonitorCmd.MarkFlagRequired("monitor-id")
}

func runFromMonitor(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	HandleError(err, "load config")

	log := logger.New(cfg.Logging.Level, cfg.Logging.JSON)
	pipeline, err := buildPipeline(cfg, log)
	HandleError(err, "build pipeline")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := pipeline.FromMonitor(ctx, models.MonitorTriageRequest{
		MonitorID:       monitorID,
		TriggerTS:       triggerTS,
		WindowMinutes:   monitorWindowMinutes,
		BaselineMinutes: monitorBaselineMinutes,
	})
	HandleError(err, "triage from monitor")

	HandleError(writeReport(report, log), "write report")
}
