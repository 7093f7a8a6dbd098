package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saiaj/openapitest/internal/httpapi"
	"github.com/saiaj/openapitest/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags := flag.NewFlagSet("sampleapi", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)
	addr := flags.String("addr", envOr("HTTP_ADDR", ":8080"), "listen address")
	logLevel := flags.String("log-level", envOr("LOG_LEVEL", "info"), "log level: debug|info|warn|error")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return 2
	}
	if !logging.ValidLevel(*logLevel) {
		_, _ = fmt.Fprintln(os.Stderr, "log-level must be one of debug, info, warn, error")
		return 2
	}

	logger := logging.New(os.Stdout, *logLevel)
	logger.Info("starting", "addr", *addr)

	app, err := httpapi.New(logger)
	if err != nil {
		logger.Error("failed to init app", "err", err)
		return 1
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down", "reason", "signal")
	case err = <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			return 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
		return 1
	}

	return 0
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
