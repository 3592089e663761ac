package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/faultlinehq/faultline/internal/config"
	"github.com/faultlinehq/faultline/internal/engine"
	"github.com/faultlinehq/faultline/internal/models"
	"github.com/faultlinehq/faultline/internal/render"
	"github.com/faultlinehq/faultline/internal/repo"
	"github.com/faultlinehq/faultline/pkg/logger"
)

const Version = "0.1.0"

var (
	configPath string
	siteFlag   string
	outputDir  string
	markdown   bool
)

var rootCmd = &cobra.Command{
	Use:   "faultline",
	Short: "Seeded root-cause triage reports from Datadog telemetry",
	Long: `faultline turns a monitor, a log query, or a service window into a ranked
root-cause report by comparing incident telemetry against the immediately
preceding baseline.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (default: FAULTLINE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&siteFlag, "site", "", "Datadog site (default: config or DD_SITE)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "faultline-out", "Output directory for report.json/report.md")
	rootCmd.PersistentFlags().BoolVar(&markdown, "markdown", false, "Also render report.md")

	rootCmd.AddCommand(fromMonitorCmd)
	rootCmd.AddCommand(fromLogsCmd)
	rootCmd.AddCommand(fromServiceCmd)
	rootCmd.AddCommand(serveCmd)
}

// HandleError prints the error and exits.
func HandleError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration with CLI overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if siteFlag != "" {
		cfg.Datadog.Site = siteFlag
	}
	return cfg, nil
}

// buildPipeline wires the Datadog client, rule pack and engine for one run.
func buildPipeline(cfg *config.Config, log logger.Logger) (*engine.Pipeline, error) {
	if err := cfg.Datadog.Validate(); err != nil {
		return nil, err
	}
	client := repo.NewDatadogClient(cfg.Datadog.Site, cfg.Datadog.APIKey, cfg.Datadog.AppKey, cfg.Datadog.Timeout, cfg.Datadog.MaxRetries)
	rules, err := engine.NewRuleEngine(cfg.Rules.Path, log)
	if err != nil {
		return nil, fmt.Errorf("load rule pack: %w", err)
	}
	return engine.NewPipeline(log, client, rules, cfg.Datadog.Site), nil
}

// writeReport writes report.json, and report.md when --markdown is set,
// under the output directory.
func writeReport(report *models.Report, log logger.Logger) error {
	jsonPath := filepath.Join(outputDir, "report.json")
	if err := render.WriteReportJSON(report, jsonPath); err != nil {
		return err
	}
	log.Info("report written", "path", jsonPath)

	if markdown {
		mdPath := filepath.Join(outputDir, "report.md")
		if err := os.WriteFile(mdPath, []byte(render.RenderMarkdown(report)), 0o644); err != nil {
			return fmt.Errorf("write markdown: %w", err)
		}
		log.Info("report written", "path", mdPath)
	}
	return nil
}
