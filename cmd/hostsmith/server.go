package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hostsmith/internal/blockpage"
)

var (
	serverListen string
	serverRoot   string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve the block page",
	Long: `Serve the landing page shown for blocked domains. Point target_ip at
this machine and every blocked request ends up here instead of a
connection error. Prometheus metrics are exposed under /metrics.`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().StringVar(&serverListen, "listen", ":8080", "listen address")
	serverCmd.Flags().StringVar(&serverRoot, "root", "", "directory with custom block page assets")

	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return blockpage.New(serverRoot, newLogger()).Serve(ctx, serverListen)
}
