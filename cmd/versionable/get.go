package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vault-md/versionable/internal/diff"
)

func newGetCmd() *cobra.Command {
	var (
		field       string
		withTrashed bool
	)

	cmd := &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Print the current fields of a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			doc, err := s.docs.Get(context.Background(), args[0], args[1], withTrashed)
			if err != nil {
				return err
			}

			if field != "" {
				value, ok := doc.Get(field)
				if !ok {
					return fmt.Errorf("field not found: %s", field)
				}
				fmt.Fprintln(cmd.OutOrStdout(), diff.Serialize(value))
				return nil
			}
			return outputJSON(cmd, toDocumentOutput(doc))
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "Print a single field")
	cmd.Flags().BoolVar(&withTrashed, "with-trashed", false, "Include a soft-deleted document")

	return cmd
}
