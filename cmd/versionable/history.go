package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/vault-md/versionable/internal/diff"
	"github.com/vault-md/versionable/internal/usecase"
	"github.com/vault-md/versionable/internal/version"
)

func newHistoryCmd() *cobra.Command {
	var (
		oldest      bool
		withTrashed bool
		onlyTrashed bool
		limit       int
		offset      int
		format      string
	)

	cmd := &cobra.Command{
		Use:   "history <type> <id>",
		Short: "List the versions of a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			page, err := s.docs.History(context.Background(), usecase.HistoryInput{
				Type:        args[0],
				ID:          args[1],
				Oldest:      oldest,
				WithTrashed: withTrashed,
				OnlyTrashed: onlyTrashed,
				Limit:       limit,
				Offset:      offset,
			})
			if err != nil {
				return err
			}

			switch format {
			case "json":
				versions, err := versionsJSON(page.Records, s.docs.UserForeignKey())
				if err != nil {
					return err
				}
				return outputJSON(cmd, struct {
					Versions any   `json:"versions"`
					Total    int64 `json:"total"`
				}{versions, page.Total})
			case "table":
				outputHistoryTable(cmd, page)
				return nil
			default:
				return fmt.Errorf("invalid format: %s (valid values: table, json)", format)
			}
		},
	}

	cmd.Flags().BoolVar(&oldest, "oldest", false, "List oldest first")
	cmd.Flags().BoolVar(&withTrashed, "with-trashed", false, "Include soft-deleted versions")
	cmd.Flags().BoolVar(&onlyTrashed, "only-trashed", false, "List only soft-deleted versions")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of versions")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of versions to skip")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

func outputHistoryTable(cmd *cobra.Command, page *usecase.HistoryPage) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)

	idWidth, userWidth := 2, 4
	for _, r := range page.Records {
		idWidth = max(idWidth, runewidth.StringWidth(r.ID))
		userWidth = max(userWidth, runewidth.StringWidth(userLabel(r)))
	}
	userWidth = min(userWidth, 20)
	changesWidth := flexibleWidth(getTerminalWidth(), idWidth, 19, userWidth, 7)

	t.AppendHeader(table.Row{"ID", "Created", "User", "Flags", "Changes"})
	for _, r := range page.Records {
		contents := r.Contents
		t.AppendRow(table.Row{
			r.ID,
			formatTimestamp(r.CreatedAt),
			runewidth.Truncate(userLabel(r), userWidth, "..."),
			recordFlags(r),
			fieldsSummary(contents.Keys(), func(name string) string {
				return diff.Serialize(contents.Value(name))
			}, changesWidth),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", page.Total})

	t.Render()
}

func userLabel(r version.Record) string {
	if r.UserID == nil {
		return "-"
	}
	return *r.UserID
}

func recordFlags(r version.Record) string {
	flags := ""
	if r.IsInitial {
		flags += "I"
	}
	if r.Trashed() {
		flags += "D"
	}
	return flags
}
