package main

import (
	"fmt"

	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-membership"
)

var grantCmd = &cobra.Command{
	Use:   "grant <email> <tag>",
	Short: "Grant a tag to a member",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateMembership(cmd, args, func(a *app, m *membership.Member) (*membership.MemberTag, error) {
			at, err := parseAt(cmd)
			if err != nil {
				return nil, err
			}
			return a.repo.Memberships().Grant(cmd.Context(), m.ID, args[1], at)
		})
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <email> <tag>",
	Short: "Revoke a tag from a member",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateMembership(cmd, args, func(a *app, m *membership.Member) (*membership.MemberTag, error) {
			at, err := parseAt(cmd)
			if err != nil {
				return nil, err
			}
			return a.repo.Memberships().Revoke(cmd.Context(), m.ID, args[1], at)
		})
	},
}

var setTagsCmd = &cobra.Command{
	Use:   "set-tags <email> [tag]...",
	Short: "Replace the member's active tags with the given set",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.memberByEmail(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		at, err := parseAt(cmd)
		if err != nil {
			return err
		}

		var result *membership.SyncResult
		err = membership.NewUpdateMemberTagsHandler(a.repo).Execute(cmd.Context(), membership.UpdateMemberTagsMessage{
			MemberID:   m.ID,
			Tags:       args[1:],
			At:         at,
			OnResponse: func(r *membership.SyncResult) { result = r },
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(result))
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <email> <tag>...",
	Short: "Report whether a member holds any of the tags",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.memberByEmail(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		at, err := parseAt(cmd)
		if err != nil {
			return err
		}

		authz := membership.NewAuthorizer(a.repo.Memberships(),
			membership.WithAuthorizerLogger(a.logger),
			membership.WithAuthorizerMetrics(a.metrics),
		)
		ok, err := authz.HasAnyAt(cmd.Context(), m.ID, at, args[1:]...)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %t\n", m.Email, membership.RequireAny(args[1:]...), ok)
		if !ok {
			return fmt.Errorf("member does not hold %v", args[1:])
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <email>",
	Short: "Print the member's membership history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.memberByEmail(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		rows, err := a.repo.Memberships().History(cmd.Context(), m.ID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(rows))
		return nil
	},
}

var holdersCmd = &cobra.Command{
	Use:   "holders <tag>",
	Short: "List members currently holding a tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		at, err := parseAt(cmd)
		if err != nil {
			return err
		}
		members, err := a.repo.Memberships().Holders(cmd.Context(), args[0], at)
		if err != nil {
			return err
		}
		for _, m := range members {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.Email, m.FullName())
		}
		return nil
	},
}

func mutateMembership(cmd *cobra.Command, args []string, fn func(*app, *membership.Member) (*membership.MemberTag, error)) error {
	a, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.memberByEmail(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	row, err := fn(a, m)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(row))
	return nil
}

func init() {
	for _, c := range []*cobra.Command{grantCmd, revokeCmd, setTagsCmd, checkCmd, holdersCmd} {
		c.Flags().String("at", "", "Point in time (RFC3339), defaults to now")
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(historyCmd)
}
