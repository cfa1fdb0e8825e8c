package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newTrimCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "trim <type> <id>",
		Short: "Remove old versions of a document",
		Long: "Keep the newest --keep versions besides the initial one and remove the rest. " +
			"Without --keep the configured retention applies.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 0 {
				return fmt.Errorf("--keep must not be negative")
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.docs.Trim(context.Background(), args[0], args[1], keep)
			if err != nil {
				return err
			}

			if n == 1 {
				fmt.Fprintf(cmd.OutOrStdout(), "Trimmed 1 version of %s#%s\n", args[0], args[1])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Trimmed %d versions of %s#%s\n", n, args[0], args[1])
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 0, "Number of versions to keep besides the initial one")

	return cmd
}
