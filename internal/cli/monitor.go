package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/sharedlog/internal/config"
	"github.com/roach88/sharedlog/internal/history"
	"github.com/roach88/sharedlog/internal/monitor"
)

// shutdownTimeout bounds how long the metrics server may take to drain.
const shutdownTimeout = 5 * time.Second

// MonitorOptions holds flags for the monitor command.
type MonitorOptions struct {
	*RootOptions
	Interval    time.Duration
	NoSnapshot  bool
	NoWatch     bool
	HistoryDB   string
	MetricsAddr string

	// Registry receives the monitor metrics (for testing).
	// If nil, a fresh registry with Go and process collectors is used.
	Registry *prometheus.Registry
}

// NewMonitorCommand creates the monitor command.
func NewMonitorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MonitorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the integrity monitor daemon",
		Long: `Run the integrity monitor until interrupted.

Every interval, and shortly after the log is written, the monitor validates
the log. A valid log is copied to the backup; an invalid one is restored from
the backup when the backup is valid. When both are invalid the failure is
logged and the monitor keeps running, so the log can be repaired by hand.

Example:
  sharedlog monitor --interval 5s --history-db ./monitor.db --metrics-addr :9102`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.config(cmd)
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			return runMonitor(opts, cfg, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", monitor.DefaultInterval, "poll interval")
	cmd.Flags().BoolVar(&opts.NoSnapshot, "no-snapshot", false, "do not refresh the backup from a valid log")
	cmd.Flags().BoolVar(&opts.NoWatch, "no-watch", false, "poll only, do not watch the log for writes")
	cmd.Flags().StringVar(&opts.HistoryDB, "history-db", "", "record every check in this SQLite database")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

// apply copies explicitly set flags over the loaded config.
func (o *MonitorOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("interval") {
		cfg.Monitor.Interval = o.Interval
	}
	if flags.Changed("no-snapshot") {
		cfg.Monitor.Snapshot = !o.NoSnapshot
	}
	if flags.Changed("no-watch") {
		cfg.Monitor.Watch = !o.NoWatch
	}
	if flags.Changed("history-db") {
		cfg.Monitor.HistoryDB = o.HistoryDB
	}
	if flags.Changed("metrics-addr") {
		cfg.Monitor.MetricsAddr = o.MetricsAddr
	}
}

func runMonitor(opts *MonitorOptions, cfg *config.Config, cmd *cobra.Command) error {
	if cfg.Monitor.Interval <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("interval must be positive, got %v", cfg.Monitor.Interval))
	}

	logger := opts.logger(cmd)
	slog.SetDefault(logger)

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	monOpts := []monitor.Option{
		monitor.WithLogger(logger),
		monitor.WithRegisterer(registry),
	}

	if cfg.Monitor.HistoryDB != "" {
		logger.Info("opening history database", "path", cfg.Monitor.HistoryDB)
		hist, err := history.Open(cfg.Monitor.HistoryDB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open history database", err)
		}
		defer func() {
			if closeErr := hist.Close(); closeErr != nil {
				logger.Error("error closing history database", "error", closeErr)
			}
		}()
		monOpts = append(monOpts, monitor.WithRecorder(hist))
	}

	mon, err := monitor.New(monitor.Config{
		Path:        cfg.Path,
		Interval:    cfg.Monitor.Interval,
		Snapshot:    cfg.Monitor.Snapshot,
		Watch:       cfg.Monitor.Watch,
		Debounce:    cfg.Monitor.Debounce,
		LockTimeout: cfg.Lock.Timeout,
	}, monOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create monitor", err)
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Monitoring %s every %v.\n", cfg.Path, cfg.Monitor.Interval)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mon.Run(gctx)
	})

	if cfg.Monitor.MetricsAddr != "" {
		serveMetrics(gctx, g, cfg.Monitor.MetricsAddr, registry, logger)
	}

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitCommandError, "monitor error", err)
	}

	logger.Info("monitor stopped gracefully")
	return nil
}

// serveMetrics runs a /metrics endpoint in g until ctx is done.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, registry *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
