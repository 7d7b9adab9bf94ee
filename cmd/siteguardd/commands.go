package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/haukened/siteguard/internal/guard/services/engine"
	"github.com/haukened/siteguard/internal/guard/services/usage"
)

type appRunner func(run func(cmd *cobra.Command, app *Application, args []string) error) func(*cobra.Command, []string) error

func runCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Keep the enforced block set current until interrupted",
		RunE: withApp(func(cmd *cobra.Command, app *Application, _ []string) error {
			return app.Run(cmd.Context())
		}),
	}
}

func checkCmd(withApp appRunner) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Print the access decision for a URL",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, app *Application, args []string) error {
			req := engine.Request{URL: args[0]}
			if at != "" {
				t, err := time.ParseInLocation(time.RFC3339, at, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				req.At = t
			}
			return printJSON(cmd, app.engine.Evaluate(cmd.Context(), req))
		}),
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate at this RFC 3339 instant instead of now")
	return cmd
}

func blocksetCmd(withApp appRunner) *cobra.Command {
	var install bool
	cmd := &cobra.Command{
		Use:   "blockset",
		Short: "Print the currently blocked domains and categories",
		RunE: withApp(func(cmd *cobra.Command, app *Application, _ []string) error {
			if install {
				if err := app.trigger.Rebuild(cmd.Context()); err != nil {
					return err
				}
				return printJSON(cmd, app.index.Current())
			}
			return printJSON(cmd, app.engine.MaterializedBlockSet(cmd.Context(), app.clock.Now()))
		}),
	}
	cmd.Flags().BoolVar(&install, "install", false, "also hand the set to the enforcement output")
	return cmd
}

func snoozeCmd(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snooze",
		Short: "Suspend all blocking for a while",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <duration>",
		Short: "Snooze for a duration such as 15m",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, app *Application, args []string) error {
			d, err := time.ParseDuration(args[0])
			if err != nil || d <= 0 {
				return fmt.Errorf("invalid duration %q", args[0])
			}
			if err := app.snooze.SetFor(cmd.Context(), d); err != nil {
				return err
			}
			return printJSON(cmd, app.snooze.State(cmd.Context()))
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "End any snooze now",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, app *Application, _ []string) error {
			return app.snooze.Clear(cmd.Context())
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether a snooze is active",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, app *Application, _ []string) error {
			now := app.clock.Now()
			st := app.snooze.State(cmd.Context())
			return printJSON(cmd, map[string]any{
				"active": app.snooze.Active(cmd.Context(), st, now),
				"until":  st.Until(),
			})
		}),
	})
	return cmd
}

func recordCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "record <domain> <seconds>",
		Short: "Add time spent on a domain today",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, app *Application, args []string) error {
			secs, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || secs < 0 {
				return fmt.Errorf("invalid seconds %q", args[1])
			}
			return usage.Record(cmd.Context(), app.store, args[0], secs, app.clock.Now())
		}),
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
