package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newAtCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "at <type> <id> <time>",
		Short: "Show the state of a document at a point in time",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTimeArg(args[2])
			if err != nil {
				return err
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			state, rec, err := s.docs.StateAt(context.Background(), args[0], args[1], t)
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("%s#%s has no version at or before %s", args[0], args[1], formatTimestamp(t))
			}

			switch format {
			case "json":
				data, err := versionJSON(*rec, s.docs.UserForeignKey())
				if err != nil {
					return err
				}
				return outputJSON(cmd, struct {
					Version any `json:"version"`
					State   any `json:"state"`
				}{data, state})
			case "text":
				fmt.Fprintf(cmd.OutOrStdout(), "Version %s (%s)\n", rec.ID, formatTimestamp(rec.CreatedAt))
				outputFields(cmd, state)
				return nil
			default:
				return fmt.Errorf("invalid format: %s (valid values: text, json)", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")

	return cmd
}
