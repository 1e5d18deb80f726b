// Package main is the entry point for the rabbitkind CLI.
//
// rabbitkind provisions a local RabbitMQ environment on kind: cert-manager,
// the RabbitMQ cluster and messaging topology operators, an OpenLDAP
// directory and a RabbitmqCluster that authenticates against it. Steps run
// in dependency order and are rolled back when one fails.
//
// Commands: apply, destroy, report, check, doctor.
//
// For detailed usage information, run:
//
//	rabbitkind --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/rabbitkind/cmd/rabbitkind/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
