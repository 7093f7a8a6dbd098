// Package main wires the oatest CLI entrypoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/saiaj/openapitest/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := app.Run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
