// Command parley transcribes speech with speaker attribution.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbright/parley/internal/app"
)

// main cancels the command on SIGINT or SIGTERM.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := app.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}
