package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vault-md/versionable/internal/diff"
	"github.com/vault-md/versionable/internal/version"
)

func newShowCmd() *cobra.Command {
	var (
		resolved bool
		format   string
	)

	cmd := &cobra.Command{
		Use:   "show <version-id>",
		Short: "Show a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := context.Background()
			var (
				rec   *version.Record
				state version.Contents
			)
			if resolved {
				state, rec, err = s.docs.Resolve(ctx, args[0])
			} else {
				rec, err = s.docs.Version(ctx, args[0])
			}
			if err != nil {
				return err
			}

			prev, next, err := s.docs.Neighbors(ctx, rec.ID)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				data, err := versionJSON(*rec, s.docs.UserForeignKey())
				if err != nil {
					return err
				}
				output := struct {
					Version  json.RawMessage   `json:"version"`
					State    *version.Contents `json:"state,omitempty"`
					Previous *string           `json:"previous,omitempty"`
					Next     *string           `json:"next,omitempty"`
				}{Version: data, Previous: recordID(prev), Next: recordID(next)}
				if resolved {
					output.State = &state
				}
				return outputJSON(cmd, output)
			case "text":
				outputVersionText(cmd, *rec, prev, next)
				if resolved {
					fmt.Fprintln(cmd.OutOrStdout(), "State:")
					outputFields(cmd, state)
				}
				return nil
			default:
				return fmt.Errorf("invalid format: %s (valid values: text, json)", format)
			}
		},
	}

	cmd.Flags().BoolVar(&resolved, "resolved", false, "Also print the full document state as of this version")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")

	return cmd
}

func outputVersionText(cmd *cobra.Command, r version.Record, prev, next *version.Record) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %s\n", r.ID)
	fmt.Fprintf(out, "Document:    %s\n", r.Entity)
	fmt.Fprintf(out, "User:        %s\n", userLabel(r))
	fmt.Fprintf(out, "Created At:  %s\n", formatTimestamp(r.CreatedAt))
	fmt.Fprintf(out, "Initial:     %t\n", r.IsInitial)
	if r.DeletedAt != nil {
		fmt.Fprintf(out, "Deleted At:  %s\n", formatTimestamp(*r.DeletedAt))
	}
	fmt.Fprintf(out, "Previous:    %s\n", idOrDash(prev))
	fmt.Fprintf(out, "Next:        %s\n", idOrDash(next))
	fmt.Fprintln(out, "Contents:")
	outputFields(cmd, r.Contents)
}

func outputFields(cmd *cobra.Command, c version.Contents) {
	for _, key := range c.Keys() {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", key, diff.Serialize(c.Value(key)))
	}
}

func recordID(r *version.Record) *string {
	if r == nil {
		return nil
	}
	return &r.ID
}

func idOrDash(r *version.Record) string {
	if r == nil {
		return "-"
	}
	return r.ID
}
