package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jwalitptl/clinic-api/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(cli.Options{}).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
