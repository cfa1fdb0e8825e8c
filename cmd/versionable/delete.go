package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	var (
		purge  bool
		force  bool
		userID string
	)

	cmd := &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Soft-delete a document, or purge it with its history",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			docType, id := args[0], args[1]

			if purge && !force {
				ok, err := confirm(cmd, fmt.Sprintf("Permanently delete %s#%s and its whole history? (y/N) ", docType, id))
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

			rec, err := s.docs.Delete(context.Background(), docType, id, purge, s.user(userID))
			if err != nil {
				return err
			}

			switch {
			case purge:
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s#%s and its history\n", docType, id)
			case rec != nil:
				fmt.Fprintf(cmd.OutOrStdout(), "Trashed %s#%s (version %s)\n", docType, id, rec.ID)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Trashed %s#%s\n", docType, id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "Delete permanently, including every version")
	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User the deletion is attributed to")

	return cmd
}

func newRestoreCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "restore <type> <id>",
		Short: "Restore a soft-deleted document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			rec, err := s.docs.Restore(context.Background(), args[0], args[1], s.user(userID))
			if err != nil {
				return err
			}
			if rec != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %s#%s (version %s)\n", args[0], args[1], rec.ID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s#%s\n", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User the restore is attributed to")

	return cmd
}
