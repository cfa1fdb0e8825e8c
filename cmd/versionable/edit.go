package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vault-md/versionable/internal/usecase"
)

func newEditCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "edit <type> <id>",
		Short: "Edit document fields with $EDITOR",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := context.Background()
			doc, err := s.docs.Get(ctx, args[0], args[1], false)
			if err != nil {
				return err
			}

			currentContent, err := json.MarshalIndent(doc.Fields(), "", "  ")
			if err != nil {
				return err
			}

			tempDir, err := os.MkdirTemp("", "versionable-edit-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(tempDir)

			tempFile := filepath.Join(tempDir, args[0]+"-"+filepath.Base(args[1])+".json")
			if err := os.WriteFile(tempFile, append(currentContent, '\n'), 0600); err != nil {
				return err
			}

			editor := os.Getenv("EDITOR")
			if editor == "" {
				editor = os.Getenv("VISUAL")
			}
			if editor == "" {
				editor = "vi"
			}

			editorCmd := exec.Command(editor, tempFile)
			editorCmd.Stdin = os.Stdin
			editorCmd.Stdout = os.Stdout
			editorCmd.Stderr = os.Stderr

			if err := editorCmd.Run(); err != nil {
				return fmt.Errorf("editor exited with error: %w", err)
			}

			editedContent, err := os.ReadFile(tempFile)
			if err != nil {
				return err
			}
			if bytes.Equal(bytes.TrimSpace(currentContent), bytes.TrimSpace(editedContent)) {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes made")
				return nil
			}

			fields, err := parseFieldsJSON(editedContent)
			if err != nil {
				return err
			}

			result, err := s.docs.Set(ctx, usecase.SetInput{
				Type:   args[0],
				ID:     args[1],
				Fields: fields,
				UserID: s.user(userID),
			})
			if err != nil {
				return err
			}
			if result.Version == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes to record")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Recorded version %s\n", result.Version.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User the version is attributed to")

	return cmd
}
