package main

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haukened/siteguard/internal/guard/common/domainkey"
	"github.com/haukened/siteguard/internal/guard/common/log"
	"github.com/haukened/siteguard/internal/guard/domain"
	"github.com/haukened/siteguard/internal/guard/repos/domainlist"
	"github.com/haukened/siteguard/internal/guard/services/category"
)

func categoriesCmd(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Inspect and extend domain categories",
	}
	cmd.AddCommand(categoriesImportCmd(withApp))
	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <domain>...",
		Short: "Print the category each domain resolves to",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, app *Application, args []string) error {
			snap := app.policy.Load(cmd.Context(), app.clock.Now())
			resolver := category.NewResolver(snap.DomainCategories)
			out := make(map[string]string, len(args))
			for _, a := range args {
				out[a] = resolver.Resolve(domainkey.Normalize(a))
			}
			return printJSON(cmd, out)
		}),
	})
	return cmd
}

func categoriesImportCmd(withApp appRunner) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <category> <file>",
		Short: "Assign every domain in a hosts file or plain list to a category",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, app *Application, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("category name is required")
			}
			f, err := domainlist.ParseFormat(format)
			if err != nil {
				return err
			}
			file, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open list: %w", err)
			}
			defer file.Close()

			domains, err := domainlist.Parse(file, f, args[1], log.Component(nil, "domainlist"))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			snap := app.policy.Load(ctx, app.clock.Now())
			if snap.Degraded {
				return fmt.Errorf("policy store is degraded, refusing to overwrite categories")
			}
			mapping, changed := domainlist.Assign(snap.DomainCategories, domains, name)
			if err := app.policy.SaveDomainCategories(ctx, mapping); err != nil {
				return err
			}
			known := slices.ContainsFunc(snap.Categories, func(c domain.Category) bool {
				return strings.EqualFold(c.Name, name)
			})
			if !known {
				cats := append(slices.Clone(snap.Categories), domain.Category{Name: name})
				if err := app.policy.SaveCategories(ctx, cats); err != nil {
					return err
				}
			}
			return printJSON(cmd, map[string]any{
				"category": name,
				"parsed":   len(domains),
				"changed":  changed,
			})
		}),
	}
	cmd.Flags().StringVar(&format, "format", "auto", "list format: auto, hosts or plain")
	return cmd
}
