// bloomctl prepares the Bloom backend's dependencies and launches its web server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bloom/bloomctl/cmd/bloomctl/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
