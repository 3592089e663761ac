package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/faultlinehq/faultline/internal/models"
	"github.com/faultlinehq/faultline/pkg/logger"
)

var (
	serviceName  string
	serviceEnv   string
	serviceStart string
	serviceEnd   string
	serviceMode  string
)

var fromServiceCmd = &cobra.Command{
	Use:   "from-service",
	Short: "Triage a service over an explicit incident window",
	Run:   runFromService,
}

func init() {
	fromServiceCmd.Flags().StringVar(&serviceName, "service", "", "Service name (required)")
	fromServiceCmd.Flags().StringVar(&serviceEnv, "env", "", "Environment (required)")
	fromServiceCmd.Flags().StringVar(&serviceStart, "start", "", "Incident window start, RFC 3339 (required)")
	fromServiceCmd.Flags().StringVar(&serviceEnd, "end", "", "Incident window end, RFC 3339 (required)")
	fromServiceCmd.Flags().StringVar(&serviceMode, "mode", "latency", "Analysis mode: latency or errors")
	_ = fromServiceCmd.MarkFlagRequired("service")
	_ = fromServiceCmd.MarkFlagRequired("env")
	_ = fromServiceCmd.MarkFlagRequired("start")
	_ = fromServiceCmd.MarkFlagRequired("end")
}

func runFromService(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	HandleError(err, "load config")

	log := logger.New(cfg.Logging.Level, cfg.Logging.JSON)
	pipeline, err := buildPipeline(cfg, log)
	HandleError(err, "build pipeline")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := pipeline.FromService(ctx, models.ServiceTriageRequest{
		Service: serviceName,
		Env:     serviceEnv,
		Start:   serviceStart,
		End:     serviceEnd,
		Mode:    serviceMode,
	})
	HandleError(err, "triage from service")

	HandleError(writeReport(report, log), "write report")
}
