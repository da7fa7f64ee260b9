package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/profiledir/internal/directory"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Directory *directory.Directory
	Metrics   Recorder // optional
	Version   string
}

func (d MCPDeps) recorder() Recorder {
	if d.Metrics == nil {
		return noopRecorder{}
	}
	return d.Metrics
}

// NewMCPServer creates an MCP server with the directory tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"profiledir",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("profiledir: a directory of people profiles with contact details, locations and tags."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("search_profiles",
			mcp.WithDescription("Search profiles by name, city, country or tag. An empty query lists everyone."),
			mcp.WithString("query", mcp.Description("Case-insensitive free-text term")),
			mcp.WithArray("tags", mcp.Description("Only return profiles carrying all of these tags"), mcp.WithStringItems()),
			mcp.WithString("location", mcp.Description("Substring of city, state or country")),
		),
		mcpSearchProfiles(deps),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Return one profile by id."),
			mcp.WithString("id", mcp.Description("Profile id"), mcp.Required()),
		),
		mcpGetProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("add_profile",
			mcp.WithDescription("Add a profile. Returns the stored profile with its assigned id."),
			mcp.WithString("profile", mcp.Description("Profile as a JSON object"), mcp.Required()),
		),
		mcpAddProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("update_profile",
			mcp.WithDescription("Merge the given fields into an existing profile."),
			mcp.WithString("id", mcp.Description("Profile id"), mcp.Required()),
			mcp.WithString("patch", mcp.Description("Fields to change as a JSON object"), mcp.Required()),
		),
		mcpUpdateProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("remove_profile",
			mcp.WithDescription("Remove a profile. Removing an unknown id is not an error."),
			mcp.WithString("id", mcp.Description("Profile id"), mcp.Required()),
		),
		mcpRemoveProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("select_profile",
			mcp.WithDescription("Select a profile for the session. An empty or unknown id clears the selection."),
			mcp.WithString("id", mcp.Description("Profile id")),
		),
		mcpSelectProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("list_tags",
			mcp.WithDescription("List every tag used in the directory, sorted."),
		),
		mcpListTags(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"directory://selected",
			"Selected Profile",
			mcp.WithResourceDescription("The currently selected profile as JSON, or null"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSelected(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"directory://tags",
			"Tags",
			mcp.WithResourceDescription("Sorted tag vocabulary as a JSON array"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceTags(deps),
	)

	return s
}

func mcpSearchProfiles(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q := directory.Query{
			Term:     req.GetString("query", ""),
			Tags:     req.GetStringSlice("tags", nil),
			Location: req.GetString("location", ""),
		}
		profiles := deps.Directory.Search(q)
		deps.recorder().Operation("search", "ok")
		return mcpJSON(profiles), nil
	}
}

func mcpGetProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		p, err := deps.Directory.Get(id)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(p), nil
	}
}

func mcpAddProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("profile")
		if err != nil {
			return mcpError("profile is required"), nil
		}

		var p directory.Profile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			deps.recorder().Operation("add", "invalid")
			return mcpError(fmt.Sprintf("invalid profile JSON: %v", err)), nil
		}

		stored, err := deps.Directory.Add(p)
		if err != nil {
			deps.recorder().Operation("add", "invalid")
			return mcpError(err.Error()), nil
		}
		deps.recorder().Operation("add", "ok")
		return mcpJSON(stored), nil
	}
}

func mcpUpdateProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		raw, err := req.RequireString("patch")
		if err != nil {
			return mcpError("patch is required"), nil
		}

		var patch directory.Patch
		if err := json.Unmarshal([]byte(raw), &patch); err != nil {
			deps.recorder().Operation("update", "invalid")
			return mcpError(fmt.Sprintf("invalid patch JSON: %v", err)), nil
		}

		updated, err := deps.Directory.Update(id, patch)
		if errors.Is(err, directory.ErrNotFound) {
			deps.recorder().Operation("update", "not_found")
			return mcpError(err.Error()), nil
		}
		if err != nil {
			deps.recorder().Operation("update", "error")
			return mcpError(fmt.Sprintf("update failed: %v", err)), nil
		}
		deps.recorder().Operation("update", "ok")
		return mcpJSON(updated), nil
	}
}

func mcpRemoveProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		deps.Directory.Remove(id)
		deps.recorder().Operation("remove", "ok")
		return mcpText(fmt.Sprintf("Removed profile %s", id)), nil
	}
}

func mcpSelectProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		deps.Directory.Select(req.GetString("id", ""))
		p, ok := deps.Directory.Selected()
		if !ok {
			return mcpText("Selection cleared"), nil
		}
		return mcpJSON(p), nil
	}
}

func mcpListTags(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcpJSON(deps.Directory.Tags()), nil
	}
}

func mcpResourceSelected(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		var v any
		if p, ok := deps.Directory.Selected(); ok {
			v = p
		}
		return jsonResource(req.Params.URI, v)
	}
}

func mcpResourceTags(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonResource(req.Params.URI, deps.Directory.Tags())
	}
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func mcpJSON(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
