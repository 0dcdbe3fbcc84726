// Package mcp exposes vault operations as Model Context Protocol tools over
// stdio, so agents can import media and manage trash without the editor.
package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"scenedeck/internal/deck"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

var toolRegistry = map[string]toolEntry{
	"asset_import": {
		def: mcp.NewTool("asset_import",
			mcp.WithDescription("Copy a media file into a vault's hash-addressed assets directory. Identical content is stored once."),
			mcp.WithString("source_path", mcp.Required(), mcp.Description("Absolute path of the file to import")),
			mcp.WithString("vault_path", mcp.Required(), mcp.Description("Vault root directory")),
			mcp.WithString("asset_id", mcp.Description("Asset id to record; generated when omitted")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImport },
	},
	"asset_import_data_url": {
		def: mcp.NewTool("asset_import_data_url",
			mcp.WithDescription("Import a base64 PNG, JPEG or WebP data URL into a vault."),
			mcp.WithString("data_url", mcp.Required(), mcp.Description("data:image/<png|jpeg|webp>;base64,...")),
			mcp.WithString("vault_path", mcp.Required(), mcp.Description("Vault root directory")),
			mcp.WithString("asset_id", mcp.Description("Asset id to record; generated when omitted")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImportDataURL },
	},
	"asset_index": {
		def: mcp.NewTool("asset_index",
			mcp.WithDescription("Read a vault's asset index."),
			mcp.WithString("vault_path", mcp.Required(), mcp.Description("Vault root directory")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleIndex },
	},
	"asset_verify": {
		def: mcp.NewTool("asset_verify",
			mcp.WithDescription("List indexed assets missing from disk and files on disk missing from the index."),
			mcp.WithString("vault_path", mcp.Required(), mcp.Description("Vault root directory")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVerify },
	},
	"trash_move": {
		def: mcp.NewTool("trash_move",
			mcp.WithDescription("Move a vault file into the vault's .trash directory."),
			mcp.WithString("file_path", mcp.Required(), mcp.Description("File to trash")),
			mcp.WithString("vault_path", mcp.Required(), mcp.Description("Vault root directory")),
			mcp.WithString("asset_id", mcp.Description("Retire this asset's index entry")),
			mcp.WithString("reason", mcp.Description("Why the file was trashed")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTrashMove },
	},
	"trash_list": {
		def: mcp.NewTool("trash_list",
			mcp.WithDescription("List a vault's trash entries."),
			mcp.WithString("vault_path", mcp.Required(), mcp.Description("Vault root directory")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTrashList },
	},
	"trash_purge": {
		def: mcp.NewTool("trash_purge",
			mcp.WithDescription("Delete trash entries older than the retention period."),
			mcp.WithString("vault_path", mcp.Required(), mcp.Description("Vault root directory")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTrashPurge },
	},
	"trash_restore": {
		def: mcp.NewTool("trash_restore",
			mcp.WithDescription("Move a trash entry back to its original location."),
			mcp.WithString("vault_path", mcp.Required(), mcp.Description("Vault root directory")),
			mcp.WithString("entry_id", mcp.Required(), mcp.Description("Trash entry id")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTrashRestore },
	},
	"project_load": {
		def: mcp.NewTool("project_load",
			mcp.WithDescription("Read a project file in normalized form."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Project file path")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectLoad },
	},
	"project_recent": {
		def: mcp.NewTool("project_recent",
			mcp.WithDescription("List recently saved projects, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum entries (default 10)")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectRecent },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns the names in names that are not tools.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with the vault tools registered, except
// those listed in disabled.
func NewServer(gateway *deck.Gateway, idgen deck.IDGenerator, disabled []string, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"deck",
		version,
		server.WithToolCapabilities(true),
	)

	skip := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		skip[name] = true
	}

	h := NewHandlers(gateway, idgen)
	for name, entry := range toolRegistry {
		if skip[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run serves the tools over stdio until stdin closes or the process is
// signaled.
func Run(gateway *deck.Gateway, idgen deck.IDGenerator, disabled []string, version string) error {
	return server.ServeStdio(NewServer(gateway, idgen, disabled, version))
}
