package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"trashtrim/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	// in-flight moves finish and the summary is still printed on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}
