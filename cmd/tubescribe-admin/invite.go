package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/tubescribe/internal/service"
)

func newInviteCommand(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Manage invite codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newInviteCreateCommand(withApp))
	cmd.AddCommand(newInviteListCommand(withApp))
	cmd.AddCommand(newInviteDeactivateCommand(withApp))
	return cmd
}

func newInviteCreateCommand(withApp appRunner) *cobra.Command {
	var (
		maxUses   int
		expiresIn time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Generate a new invite code and print it",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			in := service.NewInvite{MaxUses: &maxUses}
			if expiresIn > 0 {
				at := time.Now().Add(expiresIn).UTC()
				in.ExpiresAt = &at
			}

			invite, err := service.NewInviteService(a.store, a.logger).Create(ctx, nil, in)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, invite.Code)
			return nil
		}),
	}

	cmd.Flags().IntVar(&maxUses, "max-uses", 1, "number of registrations the code allows")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "lifetime of the code, e.g. 72h (default never)")
	return cmd
}

func newInviteListCommand(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List invite codes, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			invites, err := service.NewInviteService(a.store, a.logger).List(ctx)
			if err != nil {
				return err
			}

			now := time.Now()
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tUSES\tACTIVE\tVALID\tEXPIRES")
			for _, c := range invites {
				expires := "never"
				if c.ExpiresAt != nil {
					expires = c.ExpiresAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%d/%d\t%t\t%t\t%s\n", c.Code, c.Uses, c.MaxUses, c.IsActive, c.IsValidAt(now), expires)
			}
			return tw.Flush()
		}),
	}
}

func newInviteDeactivateCommand(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate CODE",
		Short: "Stop a code from being redeemed",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			invite, err := service.NewInviteService(a.store, a.logger).Deactivate(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "invite %s deactivated\n", invite.Code)
			return nil
		}),
	}
}
