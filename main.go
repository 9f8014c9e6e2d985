package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/isometry/ad-schema-reporter/internal/command"
)

var (
	// these will be set by the goreleaser configuration
	// to appropriate values for the compiled binary.
	version string = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command.New(version).Run(ctx, os.Args); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "adschema: %v\n", err)
		os.Exit(1)
	}
}
