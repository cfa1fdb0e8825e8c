package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/vault-md/versionable/internal/document"
	"github.com/vault-md/versionable/internal/version"
)

func outputJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

type versionOutput struct {
	ID              string           `json:"id"`
	VersionableType string           `json:"versionable_type"`
	VersionableID   string           `json:"versionable_id"`
	Contents        version.Contents `json:"contents"`
	IsInitial       bool             `json:"is_initial"`
	CreatedAt       string           `json:"created_at"`
	DeletedAt       *string          `json:"deleted_at,omitempty"`
}

// versionJSON encodes a record with the user column named userKey.
func versionJSON(r version.Record, userKey string) (json.RawMessage, error) {
	out := versionOutput{
		ID:              r.ID,
		VersionableType: r.Entity.Type,
		VersionableID:   r.Entity.ID,
		Contents:        r.Contents,
		IsInitial:       r.IsInitial,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339Nano),
	}
	if r.DeletedAt != nil {
		deleted := r.DeletedAt.Format(time.RFC3339Nano)
		out.DeletedAt = &deleted
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	if userKey == "" {
		userKey = "user_id"
	}
	var user any
	if r.UserID != nil {
		user = *r.UserID
	}
	data, err = sjson.SetBytes(data, escapePath(userKey), user)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", userKey, err)
	}
	return data, nil
}

func versionsJSON(records []version.Record, userKey string) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		data, err := versionJSON(r, userKey)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

type documentOutput struct {
	Type      string           `json:"type"`
	ID        string           `json:"id"`
	Fields    version.Contents `json:"fields"`
	CreatedAt string           `json:"created_at"`
	UpdatedAt string           `json:"updated_at"`
	DeletedAt *string          `json:"deleted_at,omitempty"`
}

func toDocumentOutput(doc *document.Document) documentOutput {
	out := documentOutput{
		Type:      doc.Type,
		ID:        doc.ID,
		Fields:    doc.Fields(),
		CreatedAt: doc.CreatedAt.Format(time.RFC3339),
		UpdatedAt: doc.UpdatedAt.Format(time.RFC3339),
	}
	if doc.DeletedAt != nil {
		deleted := doc.DeletedAt.Format(time.RFC3339)
		out.DeletedAt = &deleted
	}
	return out
}

func formatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func escapePath(key string) string {
	var b []byte
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '*', '?', '|', '#', '@', '\\', ':':
			b = append(b, '\\')
		}
		b = append(b, key[i])
	}
	return string(b)
}
