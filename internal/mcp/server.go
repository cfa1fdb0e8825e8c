package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vault-md/versionable/internal/database"
	"github.com/vault-md/versionable/internal/diff"
	"github.com/vault-md/versionable/internal/document"
	"github.com/vault-md/versionable/internal/usecase"
	"github.com/vault-md/versionable/internal/version"
)

// Server exposes document versioning over MCP.
type Server struct {
	server *mcp.Server
	dbCtx  *database.Context
	docs   *usecase.Documents
}

// NewServer creates a new MCP server instance. Run closes dbCtx.
func NewServer(dbCtx *database.Context, docs *usecase.Documents, serverVersion string) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "versionable",
		Version: serverVersion,
	}, nil)

	s := &Server{
		server: mcpServer,
		dbCtx:  dbCtx,
		docs:   docs,
	}

	s.registerTools()

	return s
}

// Run starts the MCP server with stdio transport
func (s *Server) Run(ctx context.Context) error {
	defer database.CloseDatabase(s.dbCtx)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "document_set",
		Description: "Create a document or update its fields, recording a version",
	}, s.handleDocumentSet)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "document_get",
		Description: "Retrieve the current fields of a document",
	}, s.handleDocumentGet)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "version_list",
		Description: "List the versions of a document, newest first",
	}, s.handleVersionList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "version_show",
		Description: "Show a version, optionally resolved to the full document state",
	}, s.handleVersionShow)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "version_at",
		Description: "Resolve the state of a document at a point in time",
	}, s.handleVersionAt)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "version_diff",
		Description: "Compare two versions field by field",
	}, s.handleVersionDiff)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "version_revert",
		Description: "Revert a document to a version, recording the revert as a new version",
	}, s.handleVersionRevert)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "version_trim",
		Description: "Keep only the newest versions of a document",
	}, s.handleVersionTrim)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "version_delete",
		Description: "Delete versions; the initial version is protected",
	}, s.handleVersionDelete)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "version_restore",
		Description: "Restore soft-deleted versions",
	}, s.handleVersionRestore)
}

// Input/Output types for each tool

type DocumentSetInput struct {
	Type   string         `json:"type" jsonschema:"Document type"`
	ID     string         `json:"id" jsonschema:"Document id"`
	Fields map[string]any `json:"fields" jsonschema:"Fields to set"`
	User   *string        `json:"user,omitempty" jsonschema:"User the version is attributed to"`
}

type DocumentSetOutput struct {
	Message string         `json:"message"`
	Version *VersionOutput `json:"version,omitempty"`
}

type DocumentGetInput struct {
	Type        string `json:"type" jsonschema:"Document type"`
	ID          string `json:"id" jsonschema:"Document id"`
	WithTrashed *bool  `json:"withTrashed,omitempty" jsonschema:"Include a soft-deleted document"`
}

type DocumentOutput struct {
	Type      string         `json:"type"`
	ID        string         `json:"id"`
	Fields    map[string]any `json:"fields"`
	CreatedAt string         `json:"createdAt"`
	UpdatedAt string         `json:"updatedAt"`
	DeletedAt *string        `json:"deletedAt,omitempty"`
}

type VersionListInput struct {
	Type        string `json:"type" jsonschema:"Document type"`
	ID          string `json:"id" jsonschema:"Document id"`
	Oldest      *bool  `json:"oldest,omitempty" jsonschema:"List oldest first"`
	WithTrashed *bool  `json:"withTrashed,omitempty" jsonschema:"Include soft-deleted versions"`
	Limit       *int   `json:"limit,omitempty" jsonschema:"Maximum number of versions"`
	Offset      *int   `json:"offset,omitempty" jsonschema:"Number of versions to skip"`
}

type VersionListOutput struct {
	Versions []VersionOutput `json:"versions"`
	Total    int64           `json:"total"`
}

type VersionOutput struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	EntityID  string         `json:"entityId"`
	UserID    *string        `json:"userId,omitempty"`
	Contents  map[string]any `json:"contents"`
	IsInitial bool           `json:"isInitial"`
	CreatedAt string         `json:"createdAt"`
	DeletedAt *string        `json:"deletedAt,omitempty"`
}

type VersionShowInput struct {
	Version  string `json:"version" jsonschema:"Version id"`
	Resolved *bool  `json:"resolved,omitempty" jsonschema:"Return the full document state as of the version"`
}

type VersionShowOutput struct {
	Version VersionOutput  `json:"version"`
	State   map[string]any `json:"state,omitempty"`
}

type VersionAtInput struct {
	Type string `json:"type" jsonschema:"Document type"`
	ID   string `json:"id" jsonschema:"Document id"`
	Time string `json:"time" jsonschema:"RFC3339 timestamp"`
}

type VersionAtOutput struct {
	Found   bool           `json:"found"`
	Version *VersionOutput `json:"version,omitempty"`
	State   map[string]any `json:"state,omitempty"`
}

type VersionDiffInput struct {
	From   string  `json:"from" jsonschema:"Version id to compare from"`
	To     *string `json:"to,omitempty" jsonschema:"Version id to compare to (next version or live document if not specified)"`
	Format *string `json:"format,omitempty" jsonschema:"Output format: pair, unified, json, html or stats"`
}

type VersionDiffOutput struct {
	Format string          `json:"format"`
	Fields []diff.Rendered `json:"fields,omitempty"`
	Stats  *diff.Stats     `json:"stats,omitempty"`
}

type VersionRevertInput struct {
	Version string  `json:"version" jsonschema:"Version id to revert to"`
	User    *string `json:"user,omitempty" jsonschema:"User the revert is attributed to"`
}

type VersionTrimInput struct {
	Type string `json:"type" jsonschema:"Document type"`
	ID   string `json:"id" jsonschema:"Document id"`
	Keep *int   `json:"keep,omitempty" jsonschema:"Number of versions to keep besides the initial one (configured value if not specified)"`
}

type VersionIDsInput struct {
	Versions []string `json:"versions" jsonschema:"Version ids"`
	Force    *bool    `json:"force,omitempty" jsonschema:"Delete permanently instead of soft-deleting"`
}

type CountOutput struct {
	Message string `json:"message"`
	Count   int64  `json:"count"`
}

// Tool handlers

func (s *Server) handleDocumentSet(ctx context.Context, req *mcp.CallToolRequest, input DocumentSetInput) (*mcp.CallToolResult, DocumentSetOutput, error) {
	result, err := s.docs.Set(ctx, usecase.SetInput{
		Type:   input.Type,
		ID:     input.ID,
		Fields: version.ContentsOf(input.Fields),
		UserID: deref(input.User),
	})
	if err != nil {
		return nil, DocumentSetOutput{}, fmt.Errorf("failed to set document: %w", err)
	}

	if result.Version == nil {
		return nil, DocumentSetOutput{Message: "No changes to record"}, nil
	}
	out := toVersionOutput(*result.Version)
	return nil, DocumentSetOutput{
		Message: fmt.Sprintf("Recorded version %s", result.Version.ID),
		Version: &out,
	}, nil
}

func (s *Server) handleDocumentGet(ctx context.Context, req *mcp.CallToolRequest, input DocumentGetInput) (*mcp.CallToolResult, DocumentOutput, error) {
	doc, err := s.docs.Get(ctx, input.Type, input.ID, derefBool(input.WithTrashed))
	if err != nil {
		return nil, DocumentOutput{}, fmt.Errorf("failed to get document: %w", err)
	}
	return nil, toDocumentOutput(doc), nil
}

func (s *Server) handleVersionList(ctx context.Context, req *mcp.CallToolRequest, input VersionListInput) (*mcp.CallToolResult, VersionListOutput, error) {
	hi := usecase.HistoryInput{
		Type:        input.Type,
		ID:          input.ID,
		Oldest:      derefBool(input.Oldest),
		WithTrashed: derefBool(input.WithTrashed),
	}
	if input.Limit != nil {
		hi.Limit = *input.Limit
	}
	if input.Offset != nil {
		hi.Offset = *input.Offset
	}

	page, err := s.docs.History(ctx, hi)
	if err != nil {
		return nil, VersionListOutput{}, fmt.Errorf("failed to list versions: %w", err)
	}

	versions := make([]VersionOutput, 0, len(page.Records))
	for _, r := range page.Records {
		versions = append(versions, toVersionOutput(r))
	}
	return nil, VersionListOutput{Versions: versions, Total: page.Total}, nil
}

func (s *Server) handleVersionShow(ctx context.Context, req *mcp.CallToolRequest, input VersionShowInput) (*mcp.CallToolResult, VersionShowOutput, error) {
	if derefBool(input.Resolved) {
		state, rec, err := s.docs.Resolve(ctx, input.Version)
		if err != nil {
			return nil, VersionShowOutput{}, fmt.Errorf("failed to resolve version: %w", err)
		}
		return nil, VersionShowOutput{Version: toVersionOutput(*rec), State: state.Map()}, nil
	}

	rec, err := s.docs.Version(ctx, input.Version)
	if err != nil {
		return nil, VersionShowOutput{}, fmt.Errorf("failed to get version: %w", err)
	}
	return nil, VersionShowOutput{Version: toVersionOutput(*rec)}, nil
}

func (s *Server) handleVersionAt(ctx context.Context, req *mcp.CallToolRequest, input VersionAtInput) (*mcp.CallToolResult, VersionAtOutput, error) {
	t, err := time.Parse(time.RFC3339Nano, input.Time)
	if err != nil {
		return nil, VersionAtOutput{}, fmt.Errorf("invalid time %q: %w", input.Time, err)
	}

	state, rec, err := s.docs.StateAt(ctx, input.Type, input.ID, t)
	if err != nil {
		return nil, VersionAtOutput{}, fmt.Errorf("failed to resolve version: %w", err)
	}
	if rec == nil {
		return nil, VersionAtOutput{Found: false}, nil
	}
	out := toVersionOutput(*rec)
	return nil, VersionAtOutput{Found: true, Version: &out, State: state.Map()}, nil
}

func (s *Server) handleVersionDiff(ctx context.Context, req *mcp.CallToolRequest, input VersionDiffInput) (*mcp.CallToolResult, VersionDiffOutput, error) {
	result, err := s.docs.Diff(ctx, input.From, deref(input.To), deref(input.Format))
	if err != nil {
		return nil, VersionDiffOutput{}, fmt.Errorf("failed to diff versions: %w", err)
	}
	return nil, VersionDiffOutput{
		Format: result.Format,
		Fields: result.Fields,
		Stats:  result.Stats,
	}, nil
}

func (s *Server) handleVersionRevert(ctx context.Context, req *mcp.CallToolRequest, input VersionRevertInput) (*mcp.CallToolResult, DocumentSetOutput, error) {
	result, err := s.docs.Revert(ctx, input.Version, deref(input.User))
	if err != nil {
		return nil, DocumentSetOutput{}, fmt.Errorf("failed to revert: %w", err)
	}
	if result.Version == nil {
		return nil, DocumentSetOutput{Message: fmt.Sprintf("Document already matches version %s", input.Version)}, nil
	}
	out := toVersionOutput(*result.Version)
	return nil, DocumentSetOutput{
		Message: fmt.Sprintf("Reverted to version %s as version %s", input.Version, result.Version.ID),
		Version: &out,
	}, nil
}

func (s *Server) handleVersionTrim(ctx context.Context, req *mcp.CallToolRequest, input VersionTrimInput) (*mcp.CallToolResult, CountOutput, error) {
	keep := 0
	if input.Keep != nil {
		keep = *input.Keep
	}
	n, err := s.docs.Trim(ctx, input.Type, input.ID, keep)
	if err != nil {
		return nil, CountOutput{}, fmt.Errorf("failed to trim versions: %w", err)
	}
	return nil, CountOutput{Message: fmt.Sprintf("Trimmed %d version(s)", n), Count: n}, nil
}

func (s *Server) handleVersionDelete(ctx context.Context, req *mcp.CallToolRequest, input VersionIDsInput) (*mcp.CallToolResult, CountOutput, error) {
	n, err := s.docs.DeleteVersions(ctx, input.Versions, derefBool(input.Force))
	if err != nil {
		return nil, CountOutput{}, fmt.Errorf("failed to delete versions: %w", err)
	}
	if n == 0 {
		return nil, CountOutput{}, fmt.Errorf("no versions deleted")
	}
	return nil, CountOutput{Message: fmt.Sprintf("Deleted %d version(s)", n), Count: n}, nil
}

func (s *Server) handleVersionRestore(ctx context.Context, req *mcp.CallToolRequest, input VersionIDsInput) (*mcp.CallToolResult, CountOutput, error) {
	n, err := s.docs.RestoreVersions(ctx, input.Versions)
	if err != nil {
		return nil, CountOutput{}, fmt.Errorf("failed to restore versions: %w", err)
	}
	return nil, CountOutput{Message: fmt.Sprintf("Restored %d version(s)", n), Count: n}, nil
}

func toVersionOutput(r version.Record) VersionOutput {
	out := VersionOutput{
		ID:        r.ID,
		Type:      r.Entity.Type,
		EntityID:  r.Entity.ID,
		UserID:    r.UserID,
		Contents:  r.Contents.Map(),
		IsInitial: r.IsInitial,
		CreatedAt: r.CreatedAt.Format(time.RFC3339Nano),
	}
	if r.DeletedAt != nil {
		deleted := r.DeletedAt.Format(time.RFC3339Nano)
		out.DeletedAt = &deleted
	}
	return out
}

func toDocumentOutput(doc *document.Document) DocumentOutput {
	out := DocumentOutput{
		Type:      doc.Type,
		ID:        doc.ID,
		Fields:    doc.Fields().Map(),
		CreatedAt: doc.CreatedAt.Format(time.RFC3339),
		UpdatedAt: doc.UpdatedAt.Format(time.RFC3339),
	}
	if doc.DeletedAt != nil {
		deleted := doc.DeletedAt.Format(time.RFC3339)
		out.DeletedAt = &deleted
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBool(b *bool) bool {
	return b != nil && *b
}
