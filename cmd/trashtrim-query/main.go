package main

import (
	"context"
	"os"

	"trashtrim/internal/cli"
)

func main() {
	os.Exit(cli.ExecuteQuery(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
