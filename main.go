package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/adapter/llm"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/adapter/pipedream"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/config"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/observability"
	store "github.com/rooftopsai/rooftopsgpt-sub002/internal/repository"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/service"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/tools"
	handler "github.com/rooftopsai/rooftopsgpt-sub002/internal/transport/http"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/transport/rpc"
	"github.com/rooftopsai/rooftopsgpt-sub002/policy"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "agentd",
		Short:        "Roofing assistant agent server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (yaml, json or toml)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP and RPC servers",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), configFile)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or upgrade the database schema",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load(configFile)
				if err != nil {
					return err
				}
				logger := newLogger(cfg)
				db, err := openStore(cfg)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := db.Migrate(cmd.Context()); err != nil {
					return err
				}
				logger.Info("database migrated", "driver", cfg.DatabaseDriver)
				return nil
			},
		},
	)

	return rootCmd
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(cfg.LogFormat, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func openStore(cfg *config.Config) (*store.SQLStore, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		return store.NewPostgresStore(cfg.DatabaseURL)
	default:
		return store.NewSQLiteStore(cfg.DatabaseURL)
	}
}

func runServe(ctx context.Context, configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	logger.Info("starting agent server",
		"http_port", cfg.HTTPPort,
		"database_driver", cfg.DatabaseDriver,
		"llm_provider", cfg.LLMProvider,
		"mock", cfg.MockMode,
	)

	// Initialize store
	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer db.Close()
	if cfg.DatabaseDriver == "postgres" {
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	// Initialize metrics
	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	// Initialize LLM client
	llmClient, err := llm.NewLLMClient(llm.Options{
		Provider: cfg.LLMProvider,
		BaseURL:  cfg.LLMBaseURL,
		APIKey:   cfg.LLMAPIKey,
		Timeout:  cfg.InvocationTimeout,
		Mock:     cfg.MockMode,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize llm client: %w", err)
	}

	// Initialize built-in tools. Property research is an external collaborator
	// with no in-process backend; generate_property_report reports it as unconfigured.
	deps := tools.Deps{Weather: cfg.WeatherBaseURL, CRM: db}
	if cfg.BraveAPIKey != "" {
		deps.Brave = tools.NewBraveClient(cfg.BraveBaseURL, cfg.BraveAPIKey)
	}
	executor, err := tools.NewBuiltinExecutor(deps, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tools: %w", err)
	}

	// Initialize connected apps
	var source *pipedream.Source
	if cfg.PipedreamEnabled() {
		policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
		if err != nil {
			return fmt.Errorf("failed to initialize policy engine: %w", err)
		}
		connector := pipedream.NewMCPConnector(pipedream.Config{
			ServerURL:    cfg.PipedreamMCPURL,
			TokenURL:     cfg.PipedreamTokenURL,
			ClientID:     cfg.PipedreamClientID,
			ClientSecret: cfg.PipedreamClientSecret,
			ProjectID:    cfg.PipedreamProjectID,
			Environment:  cfg.PipedreamEnvironment,
		}, logger)
		cache := pipedream.NewConnectionCache(connector, cfg.ConnectionCacheTTL)
		defer cache.Close()
		source = pipedream.NewSource(cache, db, policyEngine, logger, metrics)
	} else {
		logger.Info("connected apps disabled: pipedream credentials not set")
	}

	// Initialize service
	svc := service.New(db, llmClient, executor, source, cfg, logger, metrics)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go svc.RunConfirmationExpiry(runCtx, time.Minute)

	var gatherer prometheus.Gatherer
	if registry != nil {
		gatherer = registry
	}
	e := handler.NewServer(svc, logger, gatherer)

	errCh := make(chan error, 2)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		logger.Info("http server listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var rpcServer *rpc.Server
	if cfg.RPCAddr != "" {
		rpcServer, err = rpc.NewServer(svc, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := rpcServer.Start(cfg.RPCAddr); err != nil {
				errCh <- fmt.Errorf("rpc server: %w", err)
			}
		}()
	}

	select {
	case <-runCtx.Done():
		logger.Info("shutting down agent server")
	case err = <-errCh:
		logger.Error("server failed", "error", err)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("failed to shutdown http server gracefully", "error", shutdownErr)
	}
	if rpcServer != nil {
		if shutdownErr := rpcServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("failed to shutdown rpc server gracefully", "error", shutdownErr)
		}
	}

	logger.Info("agent server stopped")
	return err
}
