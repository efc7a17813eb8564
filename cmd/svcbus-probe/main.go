package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "dev"
	gitCommit = "unknown"
)

type globalFlags struct {
	broker     string
	url        string
	service    string
	queueRoles []string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "svcbus-probe",
		Short: "Inspect and exercise service destinations",
		Long: `svcbus-probe publishes raw messages to a service's destinations and tails
the messages flowing through them over RabbitMQ, NATS or an in-process broker.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, gitCommit),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if flags.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.broker, "broker", "b", brokerRabbitMQ, "Broker transport: rabbitmq, nats or memory")
	rootCmd.PersistentFlags().StringVarP(&flags.url, "url", "u", "", "Broker URL (defaults per transport)")
	rootCmd.PersistentFlags().StringVarP(&flags.service, "service", "s", "", "Service name")
	rootCmd.PersistentFlags().StringSliceVarP(&flags.queueRoles, "queue-roles", "q", []string{"Command", "Request"}, "Roles routed through queues")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newDestinationsCmd(flags),
		newPublishCmd(flags),
		newTailCmd(flags),
		newHealthCmd(flags),
		newDemoCmd(flags),
		newSchemaCmd(),
	)
	return rootCmd
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
