package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vault-md/versionable/internal/version"
)

// parseAssignments turns field=value arguments into contents. With asJSON
// every value must be a JSON literal; otherwise values are plain strings.
func parseAssignments(args []string, asJSON bool) (version.Contents, error) {
	fields := version.NewContents()
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return version.Contents{}, fmt.Errorf("invalid assignment %q (expected field=value)", arg)
		}
		if !asJSON {
			fields.Set(name, raw)
			continue
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return version.Contents{}, fmt.Errorf("invalid JSON value for %s: %w", name, err)
		}
		fields.Set(name, value)
	}
	return fields, nil
}

// parseFieldsJSON decodes a JSON object, keeping member order.
func parseFieldsJSON(data []byte) (version.Contents, error) {
	fields := version.NewContents()
	if err := json.Unmarshal(data, &fields); err != nil {
		return version.Contents{}, fmt.Errorf("invalid fields document: %w", err)
	}
	return fields, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.DateOnly,
}

// parseTimeArg accepts RFC3339 and a few shorter layouts. Layouts without
// a zone are read in local time.
func parseTimeArg(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "now" {
		return time.Now(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time: %s (use RFC3339 or YYYY-MM-DD[ HH:MM[:SS]])", value)
}

func readInput(cmd *cobra.Command, filePath string) ([]byte, error) {
	if filePath != "" && filePath != "-" {
		return os.ReadFile(filePath)
	}

	stat, err := os.Stdin.Stat()
	if err == nil && (stat.Mode()&os.ModeCharDevice) != 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "Enter a JSON object (Ctrl-D when done):")
	}
	return io.ReadAll(cmd.InOrStdin())
}

func confirm(cmd *cobra.Command, message string) (bool, error) {
	reader := bufio.NewReader(cmd.InOrStdin())
	fmt.Fprint(cmd.ErrOrStderr(), message)
	answer, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}

	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes", nil
}
