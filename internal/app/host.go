package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"scenedeck/internal/autosave"
	"scenedeck/internal/deck"
	"scenedeck/internal/errors"
	"scenedeck/internal/model"
)

// maxRequestSize bounds one request line; pasted images arrive inline.
const maxRequestSize = 64 << 20

// Request is one line read by a Host.
type Request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is one line written by a Host. Notices from the autosave
// scheduler are written as responses without an ID.
type Response struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result any             `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Notice *NoticeMessage  `json:"notice,omitempty"`
}

// NoticeMessage is the wire form of a deck.Notice.
type NoticeMessage struct {
	ID         string `json:"id"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	DurationMs int64  `json:"durationMs"`
}

// Host serves gateway operations and autosave updates to an editor process
// over a JSON-lines stream: one Request per input line, one Response per
// output line.
type Host struct {
	gateway *deck.Gateway
	session *autosave.Session
	idgen   deck.IDGenerator
	logger  deck.Logger

	mu  sync.Mutex
	enc *json.Encoder
}

// NewHost creates a Host writing to w. newSession receives the Host as the
// notifier of the autosave session it must create.
func NewHost(gateway *deck.Gateway, newSession func(deck.Notifier) *autosave.Session, idgen deck.IDGenerator, logger deck.Logger, w io.Writer) *Host {
	h := &Host{
		gateway: gateway,
		idgen:   idgen,
		logger:  logger,
		enc:     json.NewEncoder(w),
	}
	h.session = newSession(h)
	return h
}

// Session returns the autosave session fed by "update" requests.
func (h *Host) Session() *autosave.Session {
	return h.session
}

// Notify writes an autosave notice to the stream.
func (h *Host) Notify(n deck.Notice) {
	h.write(Response{Notice: &NoticeMessage{
		ID:         n.ID,
		Severity:   string(n.Severity),
		Message:    n.Message,
		DurationMs: n.Duration.Milliseconds(),
	}})
}

// Serve handles requests from r until EOF or until ctx is done, then
// flushes and stops the autosave session.
func (h *Host) Serve(ctx context.Context, r io.Reader) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64<<10), maxRequestSize)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	var serveErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				select {
				case serveErr = <-scanErr:
				default:
				}
				break loop
			}
			if len(line) == 0 {
				continue
			}
			h.write(h.handle(ctx, line))
		}
	}

	// ctx may already be canceled; the final flush still runs.
	if err := h.session.Close(context.WithoutCancel(ctx)); err != nil {
		h.logger.Error("final autosave failed", "error", err)
		if serveErr == nil {
			serveErr = fmt.Errorf("final autosave: %w", err)
		}
	}
	if serveErr != nil {
		return fmt.Errorf("reading requests: %w", serveErr)
	}
	return nil
}

func (h *Host) handle(ctx context.Context, line []byte) Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Response{Error: "malformed request: " + err.Error()}
	}
	result, err := h.dispatch(ctx, req)
	if err != nil {
		h.logger.Warn("request failed", "method", req.Method, "error", err)
		return Response{ID: req.ID, Error: errors.Message(err)}
	}
	return Response{ID: req.ID, Result: result}
}

type vaultParams struct {
	VaultPath string `json:"vaultPath"`
}

type importParams struct {
	SourcePath string `json:"sourcePath"`
	DataURL    string `json:"dataUrl"`
	VaultPath  string `json:"vaultPath"`
	AssetID    string `json:"assetId"`
}

type indexParams struct {
	VaultPath string            `json:"vaultPath"`
	Index     *model.AssetIndex `json:"index"`
}

type trashParams struct {
	FilePath   string           `json:"filePath"`
	TrashPath  string           `json:"trashPath"`
	AssetID    string           `json:"assetId"`
	Reason     string           `json:"reason"`
	OriginRefs []model.UsageRef `json:"originRefs"`
}

type restoreParams struct {
	VaultPath string `json:"vaultPath"`
	EntryID   string `json:"entryId"`
}

type projectParams struct {
	Path     string `json:"path"`
	Contents string `json:"contents"`
}

type recentParams struct {
	Limit int `json:"limit"`
}

type updateParams struct {
	State model.ProjectState `json:"state"`
	// Baseline marks State as the saved content of a freshly opened project.
	Baseline bool `json:"baseline,omitempty"`
}

func (h *Host) dispatch(ctx context.Context, req Request) (any, error) {
	switch req.Method {
	case "importAsset":
		var p importParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return h.gateway.ImportAsset(p.SourcePath, p.VaultPath, h.assetID(p.AssetID)), nil
	case "importDataUrl":
		var p importParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return h.gateway.ImportDataURLAsset(p.DataURL, p.VaultPath, h.assetID(p.AssetID)), nil
	case "saveAssetIndex":
		var p indexParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return h.gateway.SaveAssetIndex(p.VaultPath, p.Index), nil
	case "loadAssetIndex":
		var p vaultParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return h.gateway.LoadAssetIndex(p.VaultPath), nil
	case "verifyAssets":
		var p vaultParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return h.gateway.VerifyAssets(p.VaultPath), nil
	case "moveToTrash":
		var p trashParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		meta := deck.TrashMeta{AssetID: p.AssetID, Reason: p.Reason, OriginRefs: p.OriginRefs}
		return h.gateway.MoveToTrash(p.FilePath, p.TrashPath, meta), nil
	case "listTrash":
		var p vaultParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return h.gateway.ListTrash(p.VaultPath), nil
	case "purgeTrash":
		var p vaultParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return h.gateway.PurgeTrash(p.VaultPath), nil
	case "restoreFromTrash":
		var p restoreParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return h.gateway.RestoreFromTrash(p.VaultPath, p.EntryID), nil
	case "saveProject":
		var p projectParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return h.gateway.SaveProject(p.Path, []byte(p.Contents)), nil
	case "loadProject":
		var p projectParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return h.gateway.LoadProject(p.Path), nil
	case "recentProjects":
		p := recentParams{Limit: 10}
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return h.gateway.RecentProjects(p.Limit), nil
	case "update":
		var p updateParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		if p.Baseline {
			h.session.Seed(p.State)
		} else {
			h.session.Update(p.State)
		}
		return true, nil
	case "flush":
		if err := h.session.Flush(ctx); err != nil {
			return nil, err
		}
		return true, nil
	default:
		return nil, fmt.Errorf("unknown method %q", req.Method)
	}
}

func (h *Host) write(resp Response) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.enc.Encode(resp); err != nil {
		h.logger.Error("writing response failed", "error", err)
	}
}

func (h *Host) assetID(id string) string {
	if id != "" {
		return id
	}
	return h.idgen.New()
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}
