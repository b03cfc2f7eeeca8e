package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"innozone/internal/blob"
	"innozone/internal/capability"
	"innozone/internal/config"
	"innozone/internal/core"
	"innozone/internal/mlops"
)

var (
	verbose   bool
	traceFile string

	app *application
)

// application bundles the wired service graph shared by all subcommands.
type application struct {
	cfg       config.Config
	logger    *zap.Logger
	service   *core.Service
	manager   *core.LifecycleManager
	monitor   *core.PerformanceMonitor
	decisions *core.DecisionEngine
	artifacts blob.Store
	worker    *mlops.Worker
	exps      *capability.Experiments
	tracer    *core.JSONTraceTracer
	observer  core.OperationObserver

	traceOut *os.File
}

var rootCmd = &cobra.Command{
	Use:   "izonectl",
	Short: "Innovation zone governance CLI",
	Long: `izonectl manages innovation zone projects: admission, stage gates,
performance snapshots, objective decision runs, adapter release pipelines
and capability experiments.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		app, err = buildApplication()
		return err
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if app == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.worker.Stop(ctx)
		if app.traceOut != nil {
			_ = app.traceOut.Close()
		}
		_ = app.logger.Sync()
	},
}

func buildApplication() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logCfg := zap.NewProductionConfig()
	if verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else if level, parseErr := zapcore.ParseLevel(cfg.LogLevel); parseErr == nil {
		logCfg.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := logCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	store, err := core.OpenPersistentStore(core.NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	rules, err := core.LoadDecisionRules(cfg.DecisionRulesPath)
	if err != nil {
		return nil, err
	}
	watches, err := core.DefaultAnomalyWatches()
	if err != nil {
		return nil, err
	}

	metrics := core.NewMetrics(prometheus.DefaultRegisterer)
	monitor := core.NewPerformanceMonitor(store, watches, metrics)
	decisions := core.NewDecisionEngine(rules, store)
	manager := core.NewLifecycleManager(store, decisions, monitor, metrics, nil, logger)

	ctx := context.Background()
	artifacts, err := blob.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	exps := capability.NewExperiments(store)
	worker := mlops.NewWorker(store, artifacts, mlops.ManifestMerger{}, mlops.BasicValidator{}, nil, logger)
	worker.SetPreferences(exps)
	worker.Start()

	a := &application{
		cfg:       cfg,
		logger:    logger,
		service:   core.NewService(store),
		manager:   manager,
		monitor:   monitor,
		decisions: decisions,
		artifacts: artifacts,
		worker:    worker,
		exps:      exps,
		observer:  core.NewExpvarMetricsRecorder("izonectl_ops"),
	}
	if traceFile != "" {
		out, err := os.OpenFile(traceFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.traceOut = out
		a.tracer = core.NewJSONTracer(out)
	} else {
		a.tracer = core.NewJSONTracer(nil)
	}
	return a, nil
}

// run wraps a command body in a trace span and operation metrics.
func (a *application) run(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	err := a.tracer.Span(ctx, operation, fn)
	a.observer.Observe(ctx, operation, err == nil, time.Since(start))
	return err
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&traceFile, "trace-file", "", "append JSON trace spans to this file")

	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(gateCmd)
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(releaseCmd)
	rootCmd.AddCommand(experimentCmd)
	rootCmd.AddCommand(capabilityCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
