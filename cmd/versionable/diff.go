package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vault-md/versionable/internal/diff"
	"github.com/vault-md/versionable/internal/usecase"
)

func newDiffCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "diff <from-version> [to-version]",
		Short: "Compare two versions field by field",
		Long: "Compare two versions. Without a second version the first one is compared with the " +
			"version after it, or with the live document when it is the latest.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to := ""
			if len(args) == 2 {
				to = args[1]
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.docs.Diff(context.Background(), args[0], to, format)
			if err != nil {
				return err
			}

			if result.Stats != nil {
				return outputStats(cmd, *result.Stats)
			}

			if result.Format == "unified" {
				// unchanged fields render as empty text
				for _, f := range result.Fields {
					fmt.Fprint(cmd.OutOrStdout(), f.Value)
				}
				return nil
			}
			return outputJSON(cmd, result.Fields)
		},
	}

	cmd.Flags().StringVar(&format, "format", "unified",
		"Output format: "+strings.Join(append(diff.FormatterNames(), usecase.FormatStats), ", "))

	return cmd
}

func outputStats(cmd *cobra.Command, stats diff.Stats) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Inserted:    %d\n", stats.Inserted)
	fmt.Fprintf(out, "Deleted:     %d\n", stats.Deleted)
	fmt.Fprintf(out, "Unmodified:  %d\n", stats.Unmodified)
	fmt.Fprintf(out, "Changed:     %.1f%%\n", stats.ChangedRatio*100)
	return nil
}
