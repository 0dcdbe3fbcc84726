package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"scenedeck/internal/deck"
	"scenedeck/internal/errors"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	gateway *deck.Gateway
	idgen   deck.IDGenerator
}

// NewHandlers creates a Handlers instance.
func NewHandlers(gateway *deck.Gateway, idgen deck.IDGenerator) *Handlers {
	return &Handlers{gateway: gateway, idgen: idgen}
}

// ImportRequest represents the arguments for asset_import and
// asset_import_data_url.
type ImportRequest struct {
	SourcePath string `json:"source_path,omitempty"`
	DataURL    string `json:"data_url,omitempty"`
	VaultPath  string `json:"vault_path"`
	AssetID    string `json:"asset_id,omitempty"`
}

// VaultRequest represents the arguments of tools scoped to one vault.
type VaultRequest struct {
	VaultPath string `json:"vault_path"`
}

// TrashMoveRequest represents the arguments for trash_move.
type TrashMoveRequest struct {
	FilePath  string `json:"file_path"`
	VaultPath string `json:"vault_path"`
	AssetID   string `json:"asset_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// TrashRestoreRequest represents the arguments for trash_restore.
type TrashRestoreRequest struct {
	VaultPath string `json:"vault_path"`
	EntryID   string `json:"entry_id"`
}

// ProjectLoadRequest represents the arguments for project_load.
type ProjectLoadRequest struct {
	Path string `json:"path"`
}

// RecentRequest represents the arguments for project_recent.
type RecentRequest struct {
	Limit int `json:"limit,omitempty"`
}

func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	if input.SourcePath == "" || input.VaultPath == "" {
		return invalidRequest(errMissing("source_path and vault_path")), nil
	}
	return importResult(h.gateway.ImportAsset(input.SourcePath, input.VaultPath, h.assetID(input.AssetID)))
}

func (h *Handlers) HandleImportDataURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	if input.DataURL == "" || input.VaultPath == "" {
		return invalidRequest(errMissing("data_url and vault_path")), nil
	}
	return importResult(h.gateway.ImportDataURLAsset(input.DataURL, input.VaultPath, h.assetID(input.AssetID)))
}

func (h *Handlers) HandleIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeVault(req)
	if err != nil {
		return invalidRequest(err), nil
	}
	idx := h.gateway.LoadAssetIndex(input.VaultPath)
	if idx == nil {
		return failure(errors.ErrIO, "asset index could not be read"), nil
	}
	return mcp.NewToolResultJSON(idx)
}

func (h *Handlers) HandleVerify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeVault(req)
	if err != nil {
		return invalidRequest(err), nil
	}
	report := h.gateway.VerifyAssets(input.VaultPath)
	if report == nil {
		return failure(errors.ErrIO, "assets could not be verified"), nil
	}
	return mcp.NewToolResultJSON(report)
}

func (h *Handlers) HandleTrashMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TrashMoveRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	if input.FilePath == "" || input.VaultPath == "" {
		return invalidRequest(errMissing("file_path and vault_path")), nil
	}
	dest := h.gateway.MoveToTrash(input.FilePath, deck.TrashDir(input.VaultPath),
		deck.TrashMeta{AssetID: input.AssetID, Reason: input.Reason})
	if dest == "" {
		return failure(errors.ErrIO, "file could not be moved to trash"), nil
	}
	return mcp.NewToolResultJSON(map[string]string{"trash_path": dest})
}

func (h *Handlers) HandleTrashList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeVault(req)
	if err != nil {
		return invalidRequest(err), nil
	}
	return mcp.NewToolResultJSON(map[string]any{"items": h.gateway.ListTrash(input.VaultPath)})
}

func (h *Handlers) HandleTrashPurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeVault(req)
	if err != nil {
		return invalidRequest(err), nil
	}
	return mcp.NewToolResultJSON(map[string]int{"purged": h.gateway.PurgeTrash(input.VaultPath)})
}

func (h *Handlers) HandleTrashRestore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TrashRestoreRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	if input.VaultPath == "" || input.EntryID == "" {
		return invalidRequest(errMissing("vault_path and entry_id")), nil
	}
	dest := h.gateway.RestoreFromTrash(input.VaultPath, input.EntryID)
	if dest == "" {
		return failure(errors.ErrNotFound, "trash entry could not be restored"), nil
	}
	return mcp.NewToolResultJSON(map[string]string{"restored_path": dest})
}

func (h *Handlers) HandleProjectLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProjectLoadRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	if input.Path == "" {
		return invalidRequest(errMissing("path")), nil
	}
	payload := h.gateway.LoadProject(input.Path)
	if payload == nil {
		return failure(errors.ErrNotFound, "project could not be loaded"), nil
	}
	return mcp.NewToolResultJSON(payload)
}

func (h *Handlers) HandleProjectRecent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RecentRequest](req)
	if err != nil {
		return invalidRequest(err), nil
	}
	if input.Limit <= 0 {
		input.Limit = 10
	}
	return mcp.NewToolResultJSON(map[string]any{"projects": h.gateway.RecentProjects(input.Limit)})
}

func (h *Handlers) assetID(id string) string {
	if id != "" {
		return id
	}
	return h.idgen.New()
}

func decodeVault(req mcp.CallToolRequest) (VaultRequest, error) {
	input, err := decode[VaultRequest](req)
	if err != nil {
		return input, err
	}
	if input.VaultPath == "" {
		return input, errMissing("vault_path")
	}
	return input, nil
}

func errMissing(names string) error {
	return fmt.Errorf("%s required", names)
}

// Result helpers

func importResult(res deck.ImportResult) (*mcp.CallToolResult, error) {
	if res.Success {
		return mcp.NewToolResultJSON(res)
	}
	return textResult(res, true), nil
}

func invalidRequest(err error) *mcp.CallToolResult {
	return failure("INVALID_REQUEST", err.Error())
}

// failure creates an MCP error result so clients recognize the call failed.
// Details are in the log; paths and causes are not echoed.
func failure(code errors.ErrorCode, message string) *mcp.CallToolResult {
	return textResult(map[string]any{"error": map[string]string{"code": string(code), "message": message}}, true)
}

func textResult(payload any, isError bool) *mcp.CallToolResult {
	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: isError,
	}
}
