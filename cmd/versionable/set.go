package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vault-md/versionable/internal/usecase"
)

func newSetCmd() *cobra.Command {
	var (
		asJSON   bool
		filePath string
		userID   string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "set <type> <id> [field=value...]",
		Short: "Create or update a document",
		Long: "Set fields of a document, creating it when missing. Fields come from field=value arguments " +
			"or, when none are given, from a JSON object read from --file or stdin. A version is recorded " +
			"when anything changed.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseAssignments(args[2:], asJSON)
			if err != nil {
				return err
			}
			if len(args) == 2 {
				data, err := readInput(cmd, filePath)
				if err != nil {
					return err
				}
				if fields, err = parseFieldsJSON(data); err != nil {
					return err
				}
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.docs.Set(context.Background(), usecase.SetInput{
				Type:   args[0],
				ID:     args[1],
				Fields: fields,
				UserID: s.user(userID),
			})
			if err != nil {
				return err
			}

			if format == "json" {
				if result.Version == nil {
					return outputJSON(cmd, nil)
				}
				data, err := versionJSON(*result.Version, s.docs.UserForeignKey())
				if err != nil {
					return err
				}
				return outputJSON(cmd, data)
			}

			if result.Version == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes to record")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded version %s of %s\n", result.Version.ID, result.Version.Entity)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Parse field values as JSON literals")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Read a JSON object of fields from file instead of stdin")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User the version is attributed to")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")

	return cmd
}
