package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/CTAG07/Signpost/pkg/settings"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newInstallCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Seed default settings and generate the stylesheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*configPath, func(ctx context.Context, app *App) error {
				report, err := app.install(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(report.Seeded) == 0 {
					fmt.Fprintln(out, "Settings already present, nothing seeded.")
				}
				for _, g := range report.Seeded {
					fmt.Fprintf(out, "Seeded %s defaults\n", g)
				}
				if report.Stylesheet != "" {
					fmt.Fprintf(out, "Wrote stylesheet to %s\n", report.Stylesheet)
				}
				return nil
			})
		},
	}
}

func newUninstallCommand(configPath *string) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Delete all stored settings, counters, api keys and the stylesheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("uninstall deletes all stored data; rerun with --yes to confirm")
			}
			return withApp(*configPath, func(ctx context.Context, app *App) error {
				if err := app.uninstall(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All stored data removed.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "Confirm the deletion")
	return cmd
}

func newResetCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [group]",
		Short: "Restore one settings group, or all of them, to defaults",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groups := settings.NewRegistry().Groups()
			if len(args) == 1 {
				g, err := settings.ParseGroup(args[0])
				if err != nil {
					return err
				}
				groups = []settings.Group{g}
			}
			return withApp(*configPath, func(ctx context.Context, app *App) error {
				for _, g := range groups {
					if err := app.settings.Reset(ctx, g); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Reset %s to defaults\n", g)
				}
				return nil
			})
		},
	}
}

func newSchemaCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the fields, defaults and limits of every settings group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			groups := describeSchema(settings.NewRegistry())
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(groups)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSchema(groups))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON instead of a table")
	return cmd
}

// renderSchema lays the schema out as one table row per field.
func renderSchema(groups []GroupInfo) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Group", "Field", "Type", "Default", "Limits"})
	for _, g := range groups {
		for _, f := range g.Fields {
			tw.AppendRow(table.Row{g.Group, f.Name, f.Type, formatDefault(f.Default), formatLimits(f)})
		}
		tw.AppendSeparator()
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true},
		{Number: 4, WidthMax: 40},
		{Number: 5, Align: text.AlignRight},
	})
	return tw.Render()
}

func formatDefault(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case string:
		return strconv.Quote(d)
	default:
		raw, err := json.Marshal(d)
		if err != nil {
			return fmt.Sprint(d)
		}
		return string(raw)
	}
}

func formatLimits(f FieldInfo) string {
	var parts []string
	if f.Required {
		parts = append(parts, "required")
	}
	if f.Min != 0 || f.Max != 0 {
		parts = append(parts, fmt.Sprintf("%d..%d", f.Min, f.Max))
	}
	if f.MaxItems > 0 {
		parts = append(parts, fmt.Sprintf("max %d items", f.MaxItems))
	}
	return strings.Join(parts, ", ")
}

func newKeysCommand(configPath *string) *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage admin API keys",
	}

	var description string
	var scopes []string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key and print it once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range scopes {
				if _, ok := knownScopes[s]; !ok {
					return fmt.Errorf("unknown scope %q", s)
				}
			}
			return withApp(*configPath, func(ctx context.Context, app *App) error {
				key, err := createAPIKey(ctx, app.authDB, description, scopes)
				if err != nil {
					return fmt.Errorf("failed to create api key: %w", err)
				}
				printKey(cmd.OutOrStdout(), key)
				return nil
			})
		},
	}
	createCmd.Flags().StringVarP(&description, "description", "d", "cli", "Description stored with the key")
	createCmd.Flags().StringSliceVarP(&scopes, "scope", "s", nil, "Scope to grant, repeatable (the first key is always master)")

	keysCmd.AddCommand(createCmd)
	return keysCmd
}

func printKey(w io.Writer, key CreateKeyResponse) {
	fmt.Fprintf(w, "ID:     %d\n", key.ID)
	fmt.Fprintf(w, "Key:    %s\n", key.RawKey)
	fmt.Fprintf(w, "Scopes: %s\n", strings.Join(key.Scopes, " "))
	fmt.Fprintln(w, "Store the key now, it cannot be shown again.")
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			v := currentVersion()
			fmt.Fprintf(cmd.OutOrStdout(), "signpost %s (commit %s, built %s)\n", v.Version, v.Commit, v.BuildDate)
		},
	}
}
