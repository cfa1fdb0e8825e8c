package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newRevertCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "revert <version-id>",
		Short: "Revert a document to a version",
		Long:  "Restore the document fields recorded by a version and save them as a new version. Later versions are kept.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.docs.Revert(context.Background(), args[0], s.user(userID))
			if err != nil {
				return err
			}
			if result.Version == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already matches version %s\n", result.Document.Ref(), args[0])
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Reverted %s to version %s (recorded as version %s)\n",
				result.Document.Ref(), args[0], result.Version.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User the revert is attributed to")

	return cmd
}
