// nodebus sends commands to a population of remote nodes over an MQTT
// broker and keeps a shared view of their reported state.
//
// Subcommands:
//
//	nodebus run              subscribe to the state topic and log state snapshots
//	nodebus send <command>   publish one configured command through the pool
//	nodebus commands         list the configured commands
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/nodebus.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the CLI with args, separated from main for testability.
func run(ctx context.Context, args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// getConfigPath returns the configuration file path.
// The --config flag wins, then NODEBUS_CONFIG, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("NODEBUS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
