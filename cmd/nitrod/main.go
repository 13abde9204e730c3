// Package main is the entry point for the nitro server daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nitrohttp/nitro"
	"github.com/nitrohttp/nitro/internal/config"
	"github.com/nitrohttp/nitro/internal/health"
	"github.com/nitrohttp/nitro/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	metricsAddr string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadConfig(flags.configPath, logger)
	server := initServer(cfg, logger)

	run(server, flags, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("NITRO_CONFIG_PATH", ""),
		"Path to configuration file (optional)")
	logLevel := flag.String("log-level", getEnvOrDefault("NITRO_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("NITRO_LOG_FORMAT", "json"),
		"Log format (json, console)")
	metricsAddr := flag.String("metrics-addr", getEnvOrDefault("NITRO_METRICS_ADDR", ""),
		"Metrics listen address, e.g. :9090 (disabled when empty)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		metricsAddr: *metricsAddr,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("nitrod version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadConfig loads the configuration, falling back to defaults when no
// file was given.
func loadConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting nitrod",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	if configPath == "" {
		return config.Default()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.String("addr", cfg.Addr()),
		observability.Duration("dispatch_timeout", time.Duration(cfg.DispatchTimeout)),
		observability.Int("route_cache_size", cfg.RouteCacheSize),
	)

	return cfg
}

// initServer creates the server and registers the built-in routes.
func initServer(cfg *config.Config, logger observability.Logger) *nitro.Server {
	server, err := nitro.New(cfg, nitro.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to create server", observability.Error(err))
	}

	registerRoutes(server, logger)

	return server
}

// registerRoutes wires the daemon's built-in routes.
func registerRoutes(server *nitro.Server, logger observability.Logger) {
	must := func(err error) {
		if err != nil {
			logger.Fatal("failed to register route", observability.Error(err))
		}
	}

	must(server.Get("/healthz", func(err error, r *nitro.Request) {
		_ = r.SendObject(map[string]string{"status": "ok", "version": version})
	}))

	must(server.Get("/version", func(err error, r *nitro.Request) {
		_ = r.SendObject(map[string]string{
			"version":   version,
			"buildTime": buildTime,
			"gitCommit": gitCommit,
		})
	}))

	must(server.Get("/echo/:word", func(err error, r *nitro.Request) {
		word, _ := r.PathParam("word")
		_ = r.SendText(word)
	}))

	must(server.Post("/echo", func(err error, r *nitro.Request) {
		var body any
		if err := r.BodyJSON(&body); err != nil {
			r.SetStatusCode(400)
			_ = r.SendObject(map[string]string{"error": "invalid JSON body"})
			return
		}
		_ = r.SendObject(map[string]any{"received": body})
	}))
}

// run starts the server and blocks until a shutdown signal arrives.
func run(server *nitro.Server, flags cliFlags, logger observability.Logger) {
	ctx := context.Background()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("failed to start server", observability.Error(err))
	}

	logger.Info("server listening", observability.String("addr", server.Addr()))

	startOpsServerIfEnabled(flags.metricsAddr, server, logger)
	watcher := startConfigWatcher(server, flags.configPath, logger)

	waitForShutdown(server, watcher, logger)
}

// startOpsServerIfEnabled starts the operations listener serving
// Prometheus metrics and the health probes.
func startOpsServerIfEnabled(addr string, server *nitro.Server, logger observability.Logger) {
	if addr == "" {
		return
	}

	checker := health.NewChecker(version)
	checker.RegisterCheck("server", func() health.Check {
		if !server.IsRunning() {
			return health.Check{Status: health.StatusUnhealthy, Message: "server is " + server.State().String()}
		}
		return health.Check{Status: health.StatusHealthy}
	})

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", checker.HealthHandler())
		mux.HandleFunc("/ready", checker.ReadinessHandler())

		logger.Info("starting ops server", observability.String("address", addr))

		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
		}

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server error", observability.Error(err))
		}
	}()
}

// startConfigWatcher starts the configuration watcher when a config
// file is in use.
func startConfigWatcher(server *nitro.Server, configPath string, logger observability.Logger) *config.Watcher {
	if configPath == "" {
		return nil
	}

	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		logger.Info("configuration changed, reloading")
		if reloadErr := server.Reload(newCfg); reloadErr != nil {
			logger.Error("failed to reload configuration", observability.Error(reloadErr))
		}
	}, config.WithWatcherLogger(logger))

	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
	}

	return watcher
}

// waitForShutdown waits for a shutdown signal and stops everything
// gracefully.
func waitForShutdown(server *nitro.Server, watcher *config.Watcher, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop server gracefully", observability.Error(err))
	}

	logger.Info("server stopped")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
