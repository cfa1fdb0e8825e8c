package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vault-md/versionable/internal/diff"
	"github.com/vault-md/versionable/internal/document"
)

func newListCmd() *cobra.Command {
	var (
		withTrashed bool
		format      string
	)

	cmd := &cobra.Command{
		Use:   "list [type]",
		Short: "List documents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docType := ""
			if len(args) == 1 {
				docType = args[0]
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			docs, err := s.docs.List(context.Background(), docType, withTrashed)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				output := make([]documentOutput, 0, len(docs))
				for _, doc := range docs {
					output = append(output, toDocumentOutput(doc))
				}
				return outputJSON(cmd, output)
			case "table":
				outputDocumentTable(cmd, docs, withTrashed)
				return nil
			default:
				return fmt.Errorf("invalid format: %s (valid values: table, json)", format)
			}
		},
	}

	cmd.Flags().BoolVar(&withTrashed, "with-trashed", false, "Include soft-deleted documents")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

func getTerminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}

// fieldsSummary renders "name=value" pairs on one line, truncated to
// maxWidth display cells.
func fieldsSummary(names []string, value func(string) string, maxWidth int) string {
	parts := make([]string, 0, len(names))
	for _, name := range names {
		v := strings.Join(strings.Fields(value(name)), " ")
		parts = append(parts, name+"="+v)
	}
	return runewidth.Truncate(strings.Join(parts, ", "), maxWidth, "...")
}

// flexibleWidth is the room left for the last column after the fixed
// columns and table borders.
func flexibleWidth(termWidth int, fixed ...int) int {
	width := termWidth - (len(fixed)+1)*3
	for _, w := range fixed {
		width -= w
	}
	if width < 15 {
		width = 15
	}
	return width
}

func outputDocumentTable(cmd *cobra.Command, docs []*document.Document, withTrashed bool) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)

	typeWidth, idWidth := 4, 2
	for _, doc := range docs {
		typeWidth = max(typeWidth, runewidth.StringWidth(doc.Type))
		idWidth = max(idWidth, runewidth.StringWidth(doc.ID))
	}
	typeWidth, idWidth = min(typeWidth, 30), min(idWidth, 40)

	fixed := []int{typeWidth, idWidth, 19}
	if withTrashed {
		fixed = append(fixed, 7)
	}
	fieldsWidth := flexibleWidth(getTerminalWidth(), fixed...)

	header := table.Row{"Type", "ID", "Updated", "Fields"}
	if withTrashed {
		header = append(header, "Trashed")
	}
	t.AppendHeader(header)

	for _, doc := range docs {
		fields := doc.Fields()
		summary := fieldsSummary(fields.Keys(), func(name string) string {
			return diff.Serialize(fields.Value(name))
		}, fieldsWidth)

		row := table.Row{
			runewidth.Truncate(doc.Type, typeWidth, "..."),
			runewidth.Truncate(doc.ID, idWidth, "..."),
			formatTimestamp(doc.UpdatedAt),
			summary,
		}
		if withTrashed {
			row = append(row, doc.Trashed())
		}
		t.AppendRow(row)
	}

	t.Render()
}
