package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vault-md/versionable/internal/usecase"
)

func newSnapshotCmd() *cobra.Command {
	var (
		asJSON bool
		at     string
		userID string
	)

	cmd := &cobra.Command{
		Use:   "snapshot <type> <id> [field=value...]",
		Short: "Record a version explicitly",
		Long: "Record a version of an existing document without changing it. Assignments are stored " +
			"in the version only. Use --at to back-date the version.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseAssignments(args[2:], asJSON)
			if err != nil {
				return err
			}

			var when time.Time
			if at != "" {
				if when, err = parseTimeArg(at); err != nil {
					return err
				}
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			rec, err := s.docs.CreateVersion(context.Background(), usecase.CreateVersionInput{
				Type:      args[0],
				ID:        args[1],
				Overrides: overrides,
				At:        when,
				UserID:    s.user(userID),
			})
			if err != nil {
				return err
			}
			if rec == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes to record")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Recorded version %s at %s\n", rec.ID, formatTimestamp(rec.CreatedAt))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Parse values as JSON literals")
	cmd.Flags().StringVar(&at, "at", "", "Back-date the version (RFC3339 or YYYY-MM-DD[ HH:MM[:SS]])")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User the version is attributed to")

	return cmd
}
