package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	clientcmd "github.com/runnelhq/runnel/internal/cmd/client"
	serverrun "github.com/runnelhq/runnel/internal/cmd/server"
	cfgpkg "github.com/runnelhq/runnel/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "runnel",
		Short: "Runnel event-stream engine CLI",
		Long:  "Runnel ingests event streams, persists them, and raises alerts. This CLI manages the server and queries a running instance.",
	}

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the runnel server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			httpAddr, _ := cmd.Flags().GetString("http")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")
			produce, _ := cmd.Flags().GetBool("produce")

			if configPath == "" {
				configPath = cfgpkg.FindConfigFile()
			}
			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			// Flags override file and environment.
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			if httpAddr != "" {
				cfg.Server.Addr = httpAddr
			}
			if fsyncMode != "" {
				cfg.Fsync = fsyncMode
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			if logFormat != "" {
				cfg.Logging.Format = logFormat
			}
			if cmd.Flags().Changed("produce") {
				cfg.Producer.Enabled = produce
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serverStartCmd.Flags().String("config", "", "Config file path (default: RUNNEL_CONFIG, ./runnel.yaml, /etc/runnel/runnel.yaml)")
	serverStartCmd.Flags().String("data-dir", "", "Data directory (default: OS-specific application data directory)")
	serverStartCmd.Flags().String("http", "", "HTTP listen address (default :8080)")
	serverStartCmd.Flags().String("fsync", "", "Fsync mode: always|interval|never")
	serverStartCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", "", "Log format: text|json")
	serverStartCmd.Flags().Bool("produce", false, "Run the built-in sample event producer")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	// client commands
	rootCmd.AddCommand(
		clientcmd.NewAlertsCommand(apiURL),
		clientcmd.NewItemsCommand(apiURL),
		clientcmd.NewDLQCommand(apiURL),
		clientcmd.NewStatsCommand(apiURL),
		clientcmd.NewPublishCommand(apiURL),
		clientcmd.NewProduceCommand(apiURL),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("RUNNEL_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
