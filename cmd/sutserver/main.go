// Sutserver hosts a local, fully scripted recruiter assistant behind an
// OpenAI-compatible chat completions endpoint. Pointing personasim at it
// (provider "custom") gives offline, reproducible evaluation runs.
//
// Usage:
//
//	# Start with defaults
//	sutserver
//
//	# Pick a port
//	sutserver --port 9191
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/personasim/internal/http"
	"github.com/fyrsmithlabs/personasim/internal/logging"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	port := flag.Int("port", 9191, "port to listen on")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sutserver %s (%s)\n", version, gitCommit)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *port, *logLevel); err != nil && err != nethttp.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func run(ctx context.Context, port int, logLevel string) error {
	logger, err := logging.NewLogger(&logging.Config{Level: logLevel, Format: "console"})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	srv := http.NewServer(http.Config{
		Port:            port,
		ShutdownTimeout: 10,
		ServiceName:     "sutserver",
	}, logger)

	logger.Info("sutserver listening",
		zap.Int("port", port),
		zap.String("version", version),
	)
	return srv.Start(ctx)
}
