// Command fluxora manages continuous payment streams on a local ledger.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/roach88/fluxora/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand()
	cmd.SilenceErrors = true
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !cli.IsReported(err) {
			color.New(color.FgRed).Fprintf(os.Stderr, "fluxora: %v\n", err)
		}
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
