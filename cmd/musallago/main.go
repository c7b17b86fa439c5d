// Command musallago serves the prayer-space finder API and offers CLI access to
// the same offline-first resolvers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"musallago/pkg/version"
)

const defaultConfigPath = "configs/musallago.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cli holds the persistent flags shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string
	jsonOut    bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "musallago",
		Short:         "Offline-first prayer space finder",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", defaultConfigPath, "Path to config file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "WARN", "Console log level for one-shot commands")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "Print results as JSON")

	root.AddCommand(
		c.newServeCmd(),
		c.newNearbyCmd(),
		c.newPlaceCmd(),
		c.newRouteCmd(),
		c.newPrefetchCmd(),
		c.newStatsCmd(),
		c.newOfflineCmd(),
		c.newClearCmd(),
		c.newInitConfigCmd(),
	)
	return root
}
