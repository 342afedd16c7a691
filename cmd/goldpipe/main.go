package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/retailops/goldpipe/internal/config"
	"github.com/retailops/goldpipe/internal/engine"
	"github.com/retailops/goldpipe/internal/eventlog"
	"github.com/retailops/goldpipe/internal/gold"
	"github.com/retailops/goldpipe/internal/logger"
	"github.com/retailops/goldpipe/internal/monitoring"
	"github.com/retailops/goldpipe/internal/pipelinedb"
	"github.com/retailops/goldpipe/internal/pipelinedb/models"
	"github.com/retailops/goldpipe/internal/retry"
	"github.com/retailops/goldpipe/internal/source"
	"github.com/retailops/goldpipe/internal/unit"
	"github.com/spf13/cobra"
)

func main() {
	var configPath string
	var logLevel string
	var logFormat string

	cmdRoot := &cobra.Command{
		Use:           "goldpipe",
		Short:         "Idempotent gold-layer aggregation pipeline",
		Long:          "Rolls monthly aggregates from silver.fact_sales_daily into the gold layer with durable checkpoints, retry and a structured event log.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmdRoot.PersistentFlags().StringVar(&configPath, "config", "", "path to yaml config (optional, env vars and defaults apply without it)")
	cmdRoot.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging level (debug, info, warning, error, critical)")
	cmdRoot.PersistentFlags().StringVar(&logFormat, "log-format", "", "override logging format (text, json)")

	loadConfig := func() (*config.Config, *slog.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if logFormat != "" {
			cfg.Logging.Format = logFormat
		}
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}

		log := logger.New(cfg.Logging.Level)
		if cfg.Logging.Format == "json" {
			log = logger.NewJSON(cfg.Logging.Level)
		}
		return cfg, log, nil
	}

	cmdRoot.AddCommand(cmdRun(loadConfig))
	cmdRoot.AddCommand(cmdInitDB(loadConfig))
	cmdRoot.AddCommand(cmdCheckpoints(loadConfig))

	if err := cmdRoot.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "goldpipe: %v\n", err)
		os.Exit(1)
	}
}

type configLoader func() (*config.Config, *slog.Logger, error)

func cmdRun(loadConfig configLoader) *cobra.Command {
	var unitKey string
	var filterYear int
	var filterMonth int
	var reset bool
	var dryRun bool
	var yes bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process pending months into the gold layer",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := buildOptions(unitKey, filterYear, filterMonth, reset, dryRun)
			if err != nil {
				return err
			}

			if opts.Reset && !opts.DryRun && !yes {
				if !confirmReset(cmd, opts.Unit) {
					return errors.New("reset not confirmed")
				}
			}

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runPipeline(ctx, cfg, log, opts)
		},
	}

	cmd.Flags().StringVar(&unitKey, "unit", "", "process exactly one month (YYYY-MM)")
	cmd.Flags().IntVar(&filterYear, "filter-year", 0, "narrow discovery to one year")
	cmd.Flags().IntVar(&filterMonth, "filter-month", 0, "narrow discovery to one month (requires --filter-year)")
	cmd.Flags().BoolVar(&reset, "reset", false, "clear processed-unit tracking before running (destructive)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log the plan without claiming, executing or mutating anything")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the --reset confirmation prompt")

	return cmd
}

// buildOptions validates the flag combination and translates it into
// engine options.
func buildOptions(unitKey string, filterYear, filterMonth int, reset, dryRun bool) (engine.Options, error) {
	opts := engine.Options{
		FilterYear:  filterYear,
		FilterMonth: filterMonth,
		Reset:       reset,
		DryRun:      dryRun,
	}

	if unitKey != "" {
		if filterYear != 0 || filterMonth != 0 {
			return opts, errors.New("--unit already names a month; it cannot be combined with --filter-year or --filter-month")
		}
		key, err := unit.Parse(unitKey)
		if err != nil {
			return opts, err
		}
		opts.Unit = &key
	}

	if filterMonth != 0 && filterYear == 0 {
		return opts, errors.New("--filter-month requires --filter-year")
	}
	if filterMonth != 0 && (filterMonth < 1 || filterMonth > 12) {
		return opts, fmt.Errorf("invalid --filter-month: %d", filterMonth)
	}

	return opts, nil
}

func confirmReset(cmd *cobra.Command, key *unit.Key) bool {
	scope := "ALL processed-unit tracking"
	if key != nil {
		scope = fmt.Sprintf("tracking for unit %s", key)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "This clears %s and the affected months will be reprocessed. Continue? [y/N] ", scope)

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func runPipeline(ctx context.Context, cfg *config.Config, log *slog.Logger, opts engine.Options) error {
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	// Dry runs must not write anywhere, the event table included
	var sink eventlog.Sink
	if cfg.EventTableEnabled() && !opts.DryRun {
		sink = eventlog.NewPostgresSink(store.Pool())
	}
	events := eventlog.New(log, sink, "goldpipe", cfg.Pipeline.Name)

	metrics := monitoring.New(cfg.Monitoring.PrometheusEnabled, cfg.Pipeline.Name)
	if cfg.Monitoring.PrometheusEnabled {
		stopMetrics := serveMetrics(cfg.Monitoring.ListenAddress, log)
		defer stopMetrics()
	}

	var summarySteps []gold.SummaryStep
	if cfg.SummaryStagesEnabled() {
		summarySteps = []gold.SummaryStep{
			gold.NewProductPerformance(store.Pool()),
			gold.NewCountrySales(store.Pool()),
		}
	}

	eng := engine.New(engine.Config{
		Pipeline:     cfg.Pipeline.Name,
		Registry:     store.Registry(),
		Checkpoints:  store.Checkpoints(),
		Reader:       source.NewPostgresReader(store.Pool()),
		Step:         gold.NewMonthlySales(store.Pool()),
		SummarySteps: summarySteps,
		Events:       events,
		Metrics:      metrics,
		Retry: retry.Config{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		},
	})

	summary, err := eng.Run(ctx, opts)
	if err != nil {
		return err
	}

	if !summary.OK() {
		return errors.New(failureReport(summary))
	}
	return nil
}

// failureReport renders a run's failures for the exit error, so a failed
// run ends with unit keys rather than a stack trace.
func failureReport(summary *engine.RunSummary) string {
	var parts []string
	if len(summary.FailedUnits) > 0 {
		keys := make([]string, len(summary.FailedUnits))
		for i, k := range summary.FailedUnits {
			keys[i] = k.String()
		}
		parts = append(parts, fmt.Sprintf("failed units: %s", strings.Join(keys, ", ")))
	}
	if len(summary.FailedStages) > 0 {
		parts = append(parts, fmt.Sprintf("failed stages: %s", strings.Join(summary.FailedStages, ", ")))
	}
	return fmt.Sprintf("run %s finished with failures (%s)", summary.RunID, strings.Join(parts, "; "))
}

// serveMetrics exposes /metrics while the run is active
func serveMetrics(addr string, log *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info("Prometheus metrics listening", "address", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Metrics listener failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}

func cmdInitDB(loadConfig configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Create the ops, silver and gold schemas",
		Long:  "Executes the embedded schema script. Every statement is IF NOT EXISTS, so rerunning against a populated database is safe.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			return store.InitSchema(cmd.Context())
		},
	}
}

func cmdCheckpoints(loadConfig configLoader) *cobra.Command {
	var runID string
	var pipelineName string

	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "List checkpoint records for diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if pipelineName == "" {
				pipelineName = cfg.Pipeline.Name
			}

			store, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Checkpoints().Query(cmd.Context(), pipelineName, runID)
			if err != nil {
				return err
			}

			printCheckpoints(cmd.OutOrStdout(), records)
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "limit to one run")
	cmd.Flags().StringVar(&pipelineName, "pipeline", "", "pipeline name (default: configured pipeline)")

	return cmd
}

func printCheckpoints(out io.Writer, records []models.CheckpointRecord) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTAGE\tKEY\tSTATUS\tSTARTED\tDURATION\tVALUE")
	for _, rec := range records {
		duration := "-"
		if rec.DurationMS != nil {
			duration = (time.Duration(*rec.DurationMS) * time.Millisecond).String()
		}
		value := rec.CheckpointValue
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.RunID, rec.Stage, rec.CheckpointKey, rec.Status,
			rec.StartTime.Format(time.RFC3339), duration, value,
		)
	}
	w.Flush()
}

func openStore(cfg *config.Config, log *slog.Logger) (*pipelinedb.Store, error) {
	return pipelinedb.Open(&models.Config{
		DatabaseURL:         cfg.Database.URL,
		MaxConns:            cfg.Database.MaxConns,
		MinConns:            cfg.Database.MinConns,
		ConnectTimeout:      cfg.Database.ConnectTimeout,
		HealthCheckInterval: cfg.Database.HealthCheckInterval,
		Logger:              log,
	})
}
