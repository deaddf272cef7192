package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/daniel-olson-code/pipeline/pkg/admitter"
	"github.com/daniel-olson-code/pipeline/pkg/blobstore"
	"github.com/daniel-olson-code/pipeline/pkg/config"
	"github.com/daniel-olson-code/pipeline/pkg/dag"
	"github.com/daniel-olson-code/pipeline/pkg/events"
	"github.com/daniel-olson-code/pipeline/pkg/log"
	"github.com/daniel-olson-code/pipeline/pkg/metrics"
	"github.com/daniel-olson-code/pipeline/pkg/protocol"
	"github.com/daniel-olson-code/pipeline/pkg/scheduler"
	"github.com/daniel-olson-code/pipeline/pkg/stepstore"
	"github.com/daniel-olson-code/pipeline/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordinator",
	Long: `serve opens the step and blob stores, starts the fair scheduler's
tag-usage rate limiter and the metrics collector, and listens for worker
connections on the wire protocol.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to a YAML config file")
	serveCmd.Flags().String("data-dir", "", "Data directory (overrides config)")
	serveCmd.Flags().String("host", "", "Bind host (overrides config)")
	serveCmd.Flags().Int("port", 0, "Bind port (overrides config)")
	serveCmd.Flags().Duration("lease", 0, "Working-step lease duration (overrides config)")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics/health HTTP server")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		cfg.Host = v
	}
	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		cfg.Port = v
	}
	if v, _ := cmd.Flags().GetDuration("lease"); v != 0 {
		cfg.Lease = v
	}
	if v := os.Getenv("PIPELINE_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("PIPELINE_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Port)
	}

	logger := log.WithComponent("stepctl")

	blobs, err := blobstore.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	defer blobs.Close()

	steps, err := stepstore.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open step store: %w", err)
	}
	defer steps.Close()

	for _, t := range cfg.Tags {
		if err := steps.PutTag(&types.TagRow{Tag: t.Tag, Velocity: t.Velocity}); err != nil {
			return fmt.Errorf("seed tag %s: %w", t.Tag, err)
		}
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	engine := dag.New(steps, blobs, broker)
	sched := scheduler.New(steps, cfg.Lease, cfg.ChunkSize)
	admit := admitter.New(steps, blobs, broker)
	server := protocol.NewServer(engine, sched, admit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.RunRateLimiter(ctx)

	collector := metrics.NewCollector(steps)
	collector.Start()
	defer collector.Stop()

	metrics.SetVersion("0.1.0")
	metrics.RegisterComponent("stepstore", true, "ready")
	metrics.RegisterComponent("blobstore", true, "ready")
	metrics.RegisterComponent("protocol", false, "starting")

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	logger.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(cfg.Addr()); err != nil {
			errCh <- err
		}
	}()
	time.Sleep(100 * time.Millisecond)
	metrics.RegisterComponent("protocol", true, "ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("protocol server error")
	}

	server.Stop()
	return nil
}
