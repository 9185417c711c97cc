// Landrag serves land-plot and document ingestion plus retrieval-augmented
// chat over HTTP.
//
// Configuration comes from a YAML file, a .env file and LANDRAG_*
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start with config.yaml from the working directory, if present
//	landrag
//
//	# Explicit config file and overrides
//	LANDRAG_SERVER_PORT=9000 landrag --config /etc/landrag.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/landrag/internal/app"
	"github.com/fyrsmithlabs/landrag/internal/config"
	"github.com/fyrsmithlabs/landrag/internal/logging"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (default config.yaml when present)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  landrag [--config path]   Start the server\n")
			fmt.Fprintf(os.Stderr, "  landrag version           Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("landrag by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run builds the application and serves until ctx is cancelled, then shuts
// the server down within the configured timeout.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, app.WithVersion(version))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	srv, err := a.Server()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	a.Logger.Info(ctx, "starting landrag",
		zap.String("version", version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()),
	)

	if path := watchedPath(configPath); path != "" {
		w, err := config.NewWatcher(path)
		if err != nil {
			a.Logger.Warn(ctx, "config reload disabled", zap.Error(err))
		} else {
			defer w.Close()
			go w.Run(ctx, func(next *config.Config, err error) { applyReload(ctx, a.Logger, next, err) })
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// watchedPath returns the config file to watch, or "" when only defaults
// and env vars are in use.
func watchedPath(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.DefaultConfigPath
	}
	return ""
}

// applyReload applies the settings that can change without a restart.
// Only the log level qualifies; stores, models and listeners keep their
// startup values.
func applyReload(ctx context.Context, logger *logging.Logger, next *config.Config, err error) {
	if err != nil {
		logger.Warn(ctx, "config reload failed", zap.Error(err))
		return
	}
	level, err := logging.LevelFromString(next.Logging.Level)
	if err != nil {
		logger.Warn(ctx, "config reload failed", zap.Error(err))
		return
	}
	if level == logger.Level() {
		return
	}
	logger.SetLevel(level)
	logger.Info(ctx, "log level changed", zap.Stringer("level", level))
}
