package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haukened/siteguard/internal/guard/common/log"
	"github.com/haukened/siteguard/internal/guard/config"
)

const (
	version = "0.1.0-dev"
	appName = "siteguardd"
)

// loadConfig is replaced in tests.
var loadConfig = config.Load

func newRootCmd() *cobra.Command {
	var cfg *config.AppConfig
	root := &cobra.Command{
		Use:           appName,
		Short:         "Decide and enforce site blocking from quotas, schedules and patterns",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := loadConfig()
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			if err := log.Configure(loaded.Env, loaded.Log.Level); err != nil {
				return fmt.Errorf("logging configuration error: %w", err)
			}
			cfg = loaded
			return nil
		},
	}

	withApp := func(run func(cmd *cobra.Command, app *Application, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			app, err := buildApplication(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					log.Warn(map[string]any{"error": err}, "Error closing store")
				}
			}()
			return run(cmd, app, args)
		}
	}

	root.AddCommand(runCmd(withApp))
	root.AddCommand(checkCmd(withApp))
	root.AddCommand(blocksetCmd(withApp))
	root.AddCommand(snoozeCmd(withApp))
	root.AddCommand(recordCmd(withApp))
	root.AddCommand(categoriesCmd(withApp))
	return root
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
