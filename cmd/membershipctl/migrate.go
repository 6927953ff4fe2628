package main

import (
	"fmt"
	"strconv"

	"github.com/goliatone/go-print"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-membership"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|status] [version]",
	Short: "Run database migrations",
	Args:  migrateArgs,
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringP("format", "f", "text", "Output format (text or json)")
	rootCmd.AddCommand(migrateCmd)
}

func migrateArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.RangeArgs(0, 2)(cmd, args); err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}

	switch args[0] {
	case "up", "down", "status":
	default:
		return fmt.Errorf("invalid first argument: %q", args[0])
	}

	if len(args) == 2 {
		if args[0] != "down" {
			return fmt.Errorf("invalid argument combination: %q", args)
		}
		if v, err := strconv.ParseInt(args[1], 10, 64); err != nil || v < 0 {
			return fmt.Errorf("invalid version number: %q", args[1])
		}
	}
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	format, _ := cmd.Flags().GetString("format")

	var opts []goose.ProviderOption
	if format == "json" {
		opts = append(opts, goose.WithLogger(goose.NopLogger()))
	}

	provider, err := membership.NewMigrationProvider(a.db, opts...)
	if err != nil {
		return fmt.Errorf("failed to create goose provider: %w", err)
	}

	ctx := cmd.Context()
	var out any

	switch command {
	case "up":
		out, err = provider.Up(ctx)
	case "down":
		if len(args) == 2 {
			version, _ := strconv.ParseInt(args[1], 10, 64)
			out, err = provider.DownTo(ctx, version)
		} else {
			out, err = provider.Down(ctx)
		}
	case "status":
		out, err = provider.Status(ctx)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}

	if format == "json" {
		fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(out))
		return nil
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "migrate %s done, database at version %d\n", command, version)
	return nil
}
