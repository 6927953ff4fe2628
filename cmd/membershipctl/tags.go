package main

import (
	"fmt"

	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-membership"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Manage the tag catalog",
}

var tagsCreateCmd = &cobra.Command{
	Use:   "create <name>...",
	Short: "Create tags, existing names are left untouched",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		tags, err := a.repo.Tags().EnsureTags(cmd.Context(), args...)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(tags))
		return nil
	},
}

var tagsSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the default tag catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		tags, err := a.repo.Tags().EnsureTags(cmd.Context(), membership.DefaultTags()...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d tags in catalog\n", len(tags))
		return nil
	},
}

var tagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tag catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		tags, err := a.repo.Tags().ListTags(cmd.Context())
		if err != nil {
			return err
		}
		for _, tag := range tags {
			fmt.Fprintln(cmd.OutOrStdout(), tag.Name)
		}
		return nil
	},
}

var tagsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a tag no membership references",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.repo.Tags().DeleteTag(cmd.Context(), args[0])
	},
}

func init() {
	tagsCmd.AddCommand(tagsCreateCmd, tagsSeedCmd, tagsListCmd, tagsDeleteCmd)
	rootCmd.AddCommand(tagsCmd)
}
