// Stakesimd is the stakeholder-interview simulation daemon.
//
// It serves the chat API that drives AI stakeholder personas for
// requirements-elicitation practice, plus session and coverage endpoints.
//
// Usage:
//
//	# Start with defaults
//	STAKESIM_LLM_API_KEY=sk-... stakesimd serve
//
//	# Point at a config file
//	stakesimd serve --config /etc/stakesim/config.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stakesim/stakesim/internal/config"
	"github.com/stakesim/stakesim/internal/dialogue"
	httpapi "github.com/stakesim/stakesim/internal/http"
	"github.com/stakesim/stakesim/internal/llm"
	"github.com/stakesim/stakesim/internal/logging"
	"github.com/stakesim/stakesim/internal/persona"
	"github.com/stakesim/stakesim/internal/session"
	"github.com/stakesim/stakesim/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "stakesimd",
	Short: "Stakeholder interview simulation daemon",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			cancel()
		}()

		return run(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stakesimd %s (%s)\n", version, gitCommit)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.AddCommand(serveCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run initializes dependencies, starts the HTTP server, and blocks until
// the context is cancelled.
func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // best-effort on shutdown
	}()

	logger.Info("starting stakesimd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("model", cfg.LLM.Model))

	generator, err := llm.NewOpenAIGenerator(cfg.LLM, logger.Named("llm"))
	if err != nil {
		return fmt.Errorf("failed to initialize generator: %w", err)
	}

	metrics := telemetry.New(prometheus.DefaultRegisterer)

	engine := dialogue.NewEngine(generator,
		dialogue.WithLogger(logger.Named("dialogue")),
		dialogue.WithMetrics(metrics),
		dialogue.WithSampling(cfg.LLM.MaxTokens, cfg.LLM.Temperature),
	)
	turns := dialogue.NewService(engine, logger.Named("turns"))

	catalog := persona.NewCatalogGenerator(cfg.GitHub.Token, logger.Named("personas"))
	store := session.NewMemoryStore()

	server, err := httpapi.NewServer(turns, store, catalog, logger.Named("http"), &httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
