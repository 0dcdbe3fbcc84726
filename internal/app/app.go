package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"scenedeck/internal/assetindex"
	"scenedeck/internal/autosave"
	"scenedeck/internal/backup"
	"scenedeck/internal/config"
	"scenedeck/internal/database"
	"scenedeck/internal/deck"
	"scenedeck/internal/encryption"
	"scenedeck/internal/fs"
	"scenedeck/internal/mcp"
	"scenedeck/internal/model"
	"scenedeck/internal/project"
	"scenedeck/internal/store"
	"scenedeck/internal/trash"
)

// Options adjusts how an App is built.
type Options struct {
	// Chooser answers project dialogs; nil cancels them.
	Chooser deck.FileChooser

	// StderrLevel is the lowest level echoed to stderr. The log file
	// always receives every record.
	StderrLevel slog.Level
}

// App is the application layer between the CLI and the vault components.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and closes the state database and log file
// on Close.
type App struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	fs        deck.FileSystem
	indexer   *assetindex.Indexer
	trash     *trash.Trash
	projects  *project.Store
	gateway   *deck.Gateway
	encryptor deck.Encryptor
	clock     deck.Clock
	idgen     deck.IDGenerator
	logger    deck.Logger
	op        *Operation
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Import", "Push").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	clock := deck.RealClock{}
	op := NewOperation(operation, "", clock.Now())

	slogger, logFile, err := newLogger(cfg.LogDir, op.ID, opts.StderrLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	db, err := database.NewDatabaseFromConfig(cfg.Database, clock)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	fsys := fs.NewOSFileSystem()
	idgen := deck.UUIDGenerator{}
	indexer := assetindex.NewIndexer(fsys, logger, cfg.Assets.Ignore)
	assets := store.NewStore(fsys, deck.SHA256Hasher{}, indexer, clock, logger, cfg.TempDir)
	bin := trash.NewTrash(fsys, indexer, clock, idgen, logger, cfg.Trash.RetentionDays)
	projects := project.NewStore(fsys, opts.Chooser, db, clock, logger)

	return &App{
		cfg:       cfg,
		db:        db,
		fs:        fsys,
		indexer:   indexer,
		trash:     bin,
		projects:  projects,
		gateway:   deck.NewGateway(assets, indexer, bin, projects, logger),
		encryptor: enc,
		clock:     clock,
		idgen:     idgen,
		logger:    logger,
		op:        op,
		logFile:   logFile,
	}, nil
}

// Gateway returns the boundary facade over the vault components.
func (a *App) Gateway() *deck.Gateway {
	return a.gateway
}

// Logger returns the App's logger.
func (a *App) Logger() deck.Logger {
	return a.logger
}

// Import resolves the given paths and imports sourcePath into the vault.
// An empty assetID gets a fresh one.
func (a *App) Import(rawSource, rawVault, assetID string) (deck.ImportResult, error) {
	a.op.Parameters = rawSource
	source, vault, err := resolvePair(rawSource, rawVault)
	if err != nil {
		return deck.ImportResult{}, a.op.Record(err)
	}
	res := a.gateway.ImportAsset(source, vault, a.assetID(assetID))
	if !res.Success {
		a.op.Record(fmt.Errorf("%s", res.Error))
	}
	return res, nil
}

// ImportDataURL imports a pasted image into the vault.
func (a *App) ImportDataURL(dataURL, rawVault, assetID string) (deck.ImportResult, error) {
	vault, err := resolve(rawVault)
	if err != nil {
		return deck.ImportResult{}, a.op.Record(err)
	}
	res := a.gateway.ImportDataURLAsset(dataURL, vault, a.assetID(assetID))
	if !res.Success {
		a.op.Record(fmt.Errorf("%s", res.Error))
	}
	return res, nil
}

// MoveToTrash quarantines rawPath in the vault's trash and returns its new
// location.
func (a *App) MoveToTrash(rawPath, rawVault string, meta deck.TrashMeta) (string, error) {
	a.op.Parameters = rawPath
	path, vault, err := resolvePair(rawPath, rawVault)
	if err != nil {
		return "", a.op.Record(err)
	}
	dest, err := a.trash.MoveToTrash(path, deck.TrashDir(vault), meta)
	return dest, a.op.Record(err)
}

// ListTrash returns the trash entries of a vault.
func (a *App) ListTrash(rawVault string) ([]model.TrashEntry, error) {
	vault, err := resolve(rawVault)
	if err != nil {
		return nil, a.op.Record(err)
	}
	items, err := a.trash.List(vault)
	return items, a.op.Record(err)
}

// PurgeTrash deletes the expired trash entries of a vault.
func (a *App) PurgeTrash(rawVault string) (int, error) {
	vault, err := resolve(rawVault)
	if err != nil {
		return 0, a.op.Record(err)
	}
	n, err := a.trash.Purge(vault)
	return n, a.op.Record(err)
}

// RestoreFromTrash moves a trash entry back into the vault.
func (a *App) RestoreFromTrash(rawVault, entryID string) (string, error) {
	vault, err := resolve(rawVault)
	if err != nil {
		return "", a.op.Record(err)
	}
	dest, err := a.trash.Restore(vault, entryID)
	return dest, a.op.Record(err)
}

// VerifyAssets cross-checks a vault's asset index against its directory.
func (a *App) VerifyAssets(rawVault string) (*deck.VerifyReport, error) {
	vault, err := resolve(rawVault)
	if err != nil {
		return nil, a.op.Record(err)
	}
	report, err := a.indexer.Verify(vault)
	return report, a.op.Record(err)
}

// SyncIndex refreshes usage refs and storyline order from the vault's
// project file. It reports whether the index was rewritten.
func (a *App) SyncIndex(rawVault string) (bool, error) {
	vault, err := resolve(rawVault)
	if err != nil {
		return false, a.op.Record(err)
	}
	payload, err := a.projects.Load(deck.ProjectPath(vault))
	if err != nil {
		return false, a.op.Record(fmt.Errorf("loading project: %w", err))
	}
	changed, err := a.indexer.Sync(vault, payload.Scenes)
	return changed, a.op.Record(err)
}

// SaveProject validates contents as a project file and writes it to
// rawPath, asking the chooser when rawPath is empty.
func (a *App) SaveProject(rawPath string, contents []byte) (string, error) {
	if _, err := model.ParseProjectSavePayload(contents); err != nil {
		return "", a.op.Record(fmt.Errorf("invalid project: %w", err))
	}
	path := ""
	if rawPath != "" {
		abs, err := resolve(rawPath)
		if err != nil {
			return "", a.op.Record(err)
		}
		path = abs
	}
	saved, err := a.projects.Save(path, contents)
	return saved, a.op.Record(err)
}

// LoadProject reads a project file, asking the chooser when rawPath is
// empty.
func (a *App) LoadProject(rawPath string) (*model.ProjectSavePayload, error) {
	path := ""
	if rawPath != "" {
		abs, err := resolve(rawPath)
		if err != nil {
			return nil, a.op.Record(err)
		}
		path = abs
	}
	payload, err := a.projects.Load(path)
	return payload, a.op.Record(err)
}

// RecentProjects returns up to limit recently saved projects.
func (a *App) RecentProjects(limit int) ([]*deck.RecentProject, error) {
	recent, err := a.projects.Recent(limit)
	return recent, a.op.Record(err)
}

// NewSession creates an autosave session for one open project. An empty
// projectPath saves to the vault's default project file.
func (a *App) NewSession(notifier deck.Notifier, projectPath string) *autosave.Session {
	return autosave.NewSession(AutosaveConfig(a.cfg.Autosave), a.projects, a.indexer,
		a.clock, deck.RealTimers{}, notifier, a.logger, projectPath)
}

// Serve runs a Host over r and w until EOF or until ctx is done. Autosave
// writes to projectPath, or to the vault's default project file when empty.
func (a *App) Serve(ctx context.Context, r io.Reader, w io.Writer, projectPath string) error {
	if projectPath != "" {
		abs, err := resolve(projectPath)
		if err != nil {
			return a.op.Record(err)
		}
		projectPath = abs
	}
	host := NewHost(a.gateway, func(n deck.Notifier) *autosave.Session {
		return a.NewSession(n, projectPath)
	}, a.idgen, a.logger, w)
	return a.op.Record(host.Serve(ctx, r))
}

// ServeMCP exposes the gateway as MCP tools over stdio until stdin closes.
func (a *App) ServeMCP(version string) error {
	disabled := a.cfg.MCP.DisabledTools
	if unknown := mcp.ValidateDisabledTools(disabled); len(unknown) > 0 {
		return a.op.Record(fmt.Errorf("mcp.disabled_tools: unknown tools %v (available: %v)",
			unknown, mcp.AllToolNames()))
	}
	a.logger.Info("serving mcp", "disabled", len(disabled))
	return a.op.Record(mcp.Run(a.gateway, a.idgen, disabled, version))
}

// MCPServer builds the MCP server without serving it.
func (a *App) MCPServer(version string) *server.MCPServer {
	return mcp.NewServer(a.gateway, a.idgen, a.cfg.MCP.DisabledTools, version)
}

// InitKeys creates the backup key pair protected by passphrase.
func (a *App) InitKeys(passphrase string) error {
	if err := a.encryptor.Setup(passphrase); err != nil {
		return a.op.Record(fmt.Errorf("setting up encryption keys: %w", err))
	}
	return nil
}

// Push uploads a snapshot of the vault to the configured backup target.
func (a *App) Push(ctx context.Context, rawVault string) (*backup.PushResult, error) {
	a.op.Parameters = rawVault
	vault, err := resolve(rawVault)
	if err != nil {
		return nil, a.op.Record(err)
	}
	svc, err := a.backupService(ctx)
	if err != nil {
		return nil, a.op.Record(err)
	}
	result, err := svc.Push(vault)
	return result, a.op.Record(err)
}

// Restore writes a snapshot into rawDest. The passphrase unlocks the private
// key and is only needed for encrypted snapshots.
func (a *App) Restore(ctx context.Context, snapshotID, rawDest, passphrase string) (*backup.Manifest, error) {
	a.op.Parameters = snapshotID
	dest, err := resolve(rawDest)
	if err != nil {
		return nil, a.op.Record(err)
	}
	svc, err := a.backupService(ctx)
	if err != nil {
		return nil, a.op.Record(err)
	}

	var dec deck.DecryptionContext
	if passphrase != "" {
		dec, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return nil, a.op.Record(fmt.Errorf("unlocking private key: %w", err))
		}
	}
	manifest, err := svc.Restore(snapshotID, dest, dec)
	return manifest, a.op.Record(err)
}

// BackupHistory returns the most recent backup operations.
func (a *App) BackupHistory(limit int) ([]*deck.BackupOperation, error) {
	ops, err := a.db.ListBackupOperations(limit)
	return ops, a.op.Record(err)
}

// EncryptsBackups reports whether pushes seal objects with the encryptor.
func (a *App) EncryptsBackups() bool {
	return a.cfg.Backup.Encrypt
}

func (a *App) backupService(ctx context.Context) (*backup.Service, error) {
	target, err := backup.NewTargetFromConfig(ctx, a.cfg.Backup)
	if err != nil {
		return nil, fmt.Errorf("creating backup target: %w", err)
	}
	var enc deck.Encryptor
	if a.cfg.Backup.Encrypt {
		enc = a.encryptor
	}
	snapshots := deck.ULIDGenerator{Clock: a.clock}
	return backup.NewService(a.fs, target, enc, a.db, deck.SHA256Hasher{}, a.clock, snapshots, a.logger), nil
}

func (a *App) assetID(id string) string {
	if id != "" {
		return id
	}
	return a.idgen.New()
}

// Close logs the operation outcome and closes the database and log file.
func (a *App) Close() error {
	var firstErr error

	elapsed := a.clock.Now().Sub(a.op.StartedAt)
	if a.op.Failed() {
		a.logger.Warn("operation finished", "operation", a.op.Name, "parameters", a.op.Parameters,
			"status", a.op.Status, "elapsed", elapsed)
	} else {
		a.logger.Debug("operation finished", "operation", a.op.Name, "parameters", a.op.Parameters,
			"status", a.op.Status, "elapsed", elapsed)
	}

	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}

// AutosaveConfig converts configured autosave timing.
func AutosaveConfig(c config.AutosaveConfig) autosave.Config {
	return autosave.Config{
		Fast:           autosave.Timing{Debounce: c.FastDebounce.Duration, MaxWait: c.FastMaxWait.Duration},
		Slow:           autosave.Timing{Debounce: c.SlowDebounce.Duration, MaxWait: c.SlowMaxWait.Duration},
		NoticeCooldown: c.NoticeCooldown.Duration,
	}
}

func resolve(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("path required")
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return abs, nil
}

func resolvePair(rawPath, rawVault string) (string, string, error) {
	path, err := resolve(rawPath)
	if err != nil {
		return "", "", err
	}
	vault, err := resolve(rawVault)
	if err != nil {
		return "", "", err
	}
	return path, vault, nil
}
