package main

import (
	"context"
	"fmt"

	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-membership"
	"github.com/goliatone/go-membership/mail"
)

var memberCmd = &cobra.Command{
	Use:   "member",
	Short: "Manage members",
}

var memberAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a member",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		msg := membership.RegisterMemberMessage{}
		msg.FirstName, _ = cmd.Flags().GetString("first-name")
		msg.LastName, _ = cmd.Flags().GetString("last-name")
		msg.Email, _ = cmd.Flags().GetString("email")
		msg.Phone, _ = cmd.Flags().GetString("phone")
		msg.Password, _ = cmd.Flags().GetString("password")
		msg.Tags, _ = cmd.Flags().GetStringSlice("tag")
		msg.UseHashid, _ = cmd.Flags().GetBool("hashid")

		var created *membership.Member
		msg.OnResponse = func(m *membership.Member) { created = m }

		if err := msg.Validate(); err != nil {
			return err
		}

		handler := membership.NewRegisterMemberHandler(a.repo).
			WithHashCost(a.specs.BcryptCost).
			WithLogger(a.logger)
		if err := handler.Execute(cmd.Context(), msg); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(created))
		return nil
	},
}

var memberListCmd = &cobra.Command{
	Use:   "list",
	Short: "List members",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		members, err := a.repo.Members().ListMembers(cmd.Context())
		if err != nil {
			return err
		}
		for _, m := range members {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", m.ID, m.Email, m.FullName())
		}
		return nil
	},
}

var memberResetCmd = &cobra.Command{
	Use:   "reset-password <email>",
	Short: "Queue a password reset link for a member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		tokens, err := membership.NewTokenServiceFromConfig(a.specs,
			membership.WithTokenLogger(a.logger),
			membership.WithTokenMetrics(a.metrics),
		)
		if err != nil {
			return err
		}

		composer, err := membership.NewMailComposer(a.specs, membership.WithSiteName(a.specs.SiteName))
		if err != nil {
			return err
		}

		client := mail.NewRedisClient(a.specs.RedisAddr, a.specs.RedisPassword, a.specs.RedisDB)
		defer client.Close()
		postman := membership.NewPostman(
			mail.NewQueueMailer(client, mail.WithQueue(a.specs.MailQueue)),
			membership.WithPostmanWorkers(1),
			membership.WithPostmanSendTimeout(a.specs.SendTimeout),
			membership.WithPostmanLogger(a.logger),
			membership.WithPostmanMetrics(a.metrics),
		)
		// flush the queued message before the redis client closes
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), a.specs.SendTimeout)
			defer cancel()
			if err := postman.Close(ctx); err != nil {
				a.logger.Warn("mail queue not flushed: %v", err)
			}
		}()

		var resp *membership.InitializePasswordResetResponse
		msg := membership.InitializePasswordResetMessage{
			Email:      args[0],
			OnResponse: func(r *membership.InitializePasswordResetResponse) { resp = r },
		}
		if err := msg.Validate(); err != nil {
			return err
		}

		handler := membership.NewInitializePasswordResetHandler(a.repo, tokens, composer, postman).
			WithLogger(a.logger)
		if err := handler.Execute(cmd.Context(), msg); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(resp))
		return nil
	},
}

func init() {
	memberAddCmd.Flags().String("first-name", "", "First name")
	memberAddCmd.Flags().String("last-name", "", "Last name")
	memberAddCmd.Flags().String("email", "", "Email address")
	memberAddCmd.Flags().String("phone", "", "Phone number")
	memberAddCmd.Flags().String("password", "", "Initial password, a random one is generated when empty")
	memberAddCmd.Flags().StringSlice("tag", nil, "Tag to grant, repeatable")
	memberAddCmd.Flags().Bool("hashid", false, "Derive the member id from the email address")
	_ = memberAddCmd.MarkFlagRequired("first-name")

	memberCmd.AddCommand(memberAddCmd, memberListCmd, memberResetCmd)
	rootCmd.AddCommand(memberCmd)
}
