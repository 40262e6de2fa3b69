package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"news-analyzer/internal/analyzer"
	"news-analyzer/internal/config"
	"news-analyzer/internal/events"
	"news-analyzer/internal/logger"
	"news-analyzer/internal/ml_client"
	"news-analyzer/internal/models"
	"news-analyzer/internal/terminal"
)

// errReported marks failures already shown to the user.
var errReported = errors.New("reported")

type app struct {
	logger  *zap.Logger
	client  *ml_client.Client
	printer *terminal.Printer
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var apiURL string
	var showRaw bool
	var text string
	var url string
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Check whether a news article looks real or fake",
		Long: `Analyze a piece of news. Provide at least 30 characters of text or a URL.

Example: analyze --url https://diario.pe/nota`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if apiURL != "" {
				cfg.MLService.URL = apiURL
			}

			log, err := logger.NewLogger(&cfg.Log)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			a.logger = log
			a.client = ml_client.NewClient(cfg.MLService.URL, cfg.MLService.Timeout(), log)
			a.printer = terminal.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), showRaw)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.analyze(cmd.Context(), models.Input{Text: text, URL: url})
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Prediction service base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&showRaw, "raw", false, "Also print the raw prediction JSON")
	rootCmd.Flags().StringVar(&text, "text", "", "News text to analyze")
	rootCmd.Flags().StringVar(&url, "url", "", "URL of the news article")

	rootCmd.AddCommand(
		newHealthCmd(a),
		newStatsCmd(a),
	)

	return rootCmd
}

func (a *app) analyze(ctx context.Context, in models.Input) error {
	analyzer.HealthCheck(ctx, a.client, a.logger)

	bus := events.NewBus(1, a.logger)
	signals, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	ctrl := analyzer.NewController(a.client, nil, a.printer, bus, a.logger)
	state, err := ctrl.Analyze(ctx, in)

	select {
	case ev := <-signals:
		a.logger.Debug("Cycle completed",
			zap.String("signal", string(ev.Signal)),
			zap.String("cycle_id", ev.CycleID.String()))
	default:
	}

	if err != nil {
		return errReported
	}
	a.printer.Print(state)
	return nil
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the prediction service root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !analyzer.HealthCheck(cmd.Context(), a.client, a.logger) {
				fmt.Fprintf(cmd.ErrOrStderr(), "API no accesible: %s\n", a.client.BaseURL())
				return errReported
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API OK: %s\n", a.client.BaseURL())
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show prediction counters kept by the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			metrics, err := a.client.Metrics(cmd.Context())
			if err != nil {
				a.printer.Alert(analyzer.Message(err))
				return errReported
			}
			a.printer.PrintMetrics(metrics)
			return nil
		},
	}
}
