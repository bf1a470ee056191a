// Command chouette-iot runs the metrics/logs shipping agent.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/akatashev/chouette-iot/internal/config"
	"github.com/akatashev/chouette-iot/internal/logging"
	"github.com/akatashev/chouette-iot/pkg/supervisor"
)

// buildVersion is hardcoded: there's no ldflags-injecting CI pipeline in
// this tree.
const buildVersion = "0.1.0"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chouette-iot",
		Short: "Host-resident metrics and logs shipping agent",
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent's version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), buildVersion)
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the agent until terminated",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context())
		},
	}
}

func runAgent(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "agent: load config")
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return errors.Wrap(err, "agent: build logger")
	}
	defer logger.Sync()

	sup, err := supervisor.New(cfg, logger)
	if err != nil {
		return errors.Wrap(err, "agent: build supervisor")
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup.Start(ctx)
	logger.Info("agent started")

	<-ctx.Done()
	logger.Info("shutting down")
	return sup.Stop()
}
