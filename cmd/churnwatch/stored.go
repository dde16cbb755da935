package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const noStoredResultMessage = "No stored results. Run `churnwatch sample` or `churnwatch predict FILE` first."

func newResultsCommand(root *rootOptions) *cobra.Command {
	opts := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show the stored results of the last analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.close()

			restored, err := a.workflow.Restore()
			if err != nil {
				return err
			}
			if !restored {
				return &analysisError{Message: noStoredResultMessage}
			}
			return opts.render(cmd.OutOrStdout(), a.workflow)
		},
	}
	opts.register(cmd)
	return cmd
}

func newDashboardCommand(root *rootOptions) *cobra.Command {
	opts := &outputFlags{}
	var passkey string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show model statistics, feature importance and algorithm benchmarks",
		Long: `Show model statistics, feature importance and algorithm benchmarks.

A stored session is reused when present. Otherwise an authorization key is
required. Each widget loads independently, so one failing endpoint does not
hide the others.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.close()

			restored, err := a.workflow.Restore()
			if err != nil {
				return err
			}
			if !restored {
				if err := authenticate(cmd, a.workflow, passkey); err != nil {
					return err
				}
			}

			r, err := opts.renderer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			d, err := a.workflow.LoadDashboard(cmd.Context())
			if err != nil {
				return err
			}
			return r.Dashboard(d, a.cfg.View.TopFeatures)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&passkey, "passkey", "", "Authorization key (defaults to $"+passkeyEnv+")")
	return cmd
}

func newLogoutCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.close()

			restored, err := a.workflow.Restore()
			if err != nil {
				return err
			}
			if restored {
				if err := a.workflow.Logout(); err != nil {
					return err
				}
			} else if err := a.store.ClearResult(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session cleared.")
			return nil
		},
	}
}
