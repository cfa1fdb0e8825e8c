package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Manage individual versions",
	}

	cmd.AddCommand(newVersionDeleteCmd())
	cmd.AddCommand(newVersionRestoreCmd())

	return cmd
}

func newVersionDeleteCmd() *cobra.Command {
	var (
		purge bool
		force bool
	)

	cmd := &cobra.Command{
		Use:   "delete <version-id>...",
		Short: "Delete versions",
		Long:  "Soft-delete versions, or remove them permanently with --purge. The initial version of a document cannot be deleted.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if purge && !force {
				ok, err := confirm(cmd, fmt.Sprintf("Permanently delete %d version(s)? (y/N) ", len(args)))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Deletion cancelled")
					return nil
				}
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.docs.DeleteVersions(context.Background(), args, purge)
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("no versions deleted")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d version(s)\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "Delete permanently instead of soft-deleting")
	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")

	return cmd
}

func newVersionRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <version-id>...",
		Short: "Restore soft-deleted versions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.docs.RestoreVersions(context.Background(), args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d version(s)\n", n)
			return nil
		},
	}

	return cmd
}
