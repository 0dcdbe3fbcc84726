package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"scenedeck/internal/config"
	"scenedeck/internal/deck"
	"scenedeck/internal/model"
	"scenedeck/internal/testutil"
)

// newTestConfig uses an in-memory database, a filesystem backup target and
// the header encryptor so no keys or network are needed.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.NewConfig(base)
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Backup = config.BackupConfig{Type: "filesystem", Root: filepath.Join(base, "offsite"), Encrypt: true}
	cfg.Encryption.Type = "test"
	cfg.TempDir = t.TempDir()
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	if cfg == nil {
		cfg = newTestConfig(t)
	}
	a, err := NewApp(cfg, "Test", Options{StderrLevel: slog.LevelError + 1})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func saveProjectFile(t *testing.T, a *App, path string, state model.ProjectState) {
	t.Helper()
	data, err := model.SerializeProjectSavePayload(model.BuildProjectSavePayload(state, testutil.FixedClock().Now()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.SaveProject(path, data); err != nil {
		t.Fatalf("SaveProject() error = %v", err)
	}
}

func TestNewApp_InvalidConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Trash.RetentionDays = -1

	if _, err := NewApp(cfg, "Test", Options{}); err == nil {
		t.Fatal("NewApp() error = nil for negative retention")
	}
}

func TestApp_Import(t *testing.T) {
	a := newTestApp(t, nil)
	dir := t.TempDir()
	vault := filepath.Join(dir, "vault")
	src := filepath.Join(dir, "clip.mp4")
	testutil.WriteTestFile(t, src, []byte("frames"))

	res, err := a.Import(src, vault, "")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if !res.Success || res.IsDuplicate {
		t.Fatalf("Import() = %+v", res)
	}
	hash := testutil.SHA256Hex([]byte("frames"))
	if res.RelativePath != "assets/vid_"+hash[:12]+".mp4" {
		t.Errorf("RelativePath = %q", res.RelativePath)
	}

	idx := a.Gateway().LoadAssetIndex(vault)
	if idx == nil || len(idx.Assets) != 1 || idx.Assets[0].ID == "" {
		t.Fatalf("index = %+v, want one entry with a generated id", idx)
	}

	bad := filepath.Join(dir, "notes.txt")
	testutil.WriteTestFile(t, bad, []byte("text"))
	res, err = a.Import(bad, vault, "x")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Success || res.Error != "Unsupported file type" {
		t.Errorf("Import(txt) = %+v", res)
	}
	if !a.op.Failed() {
		t.Error("operation not marked failed after unsupported import")
	}
}

func TestApp_Import_RequiresVault(t *testing.T) {
	a := newTestApp(t, nil)
	if _, err := a.Import("shot.png", "", ""); err == nil {
		t.Error("Import() error = nil without vault")
	}
}

func TestApp_TrashRoundTrip(t *testing.T) {
	a := newTestApp(t, nil)
	vault := filepath.Join(t.TempDir(), "vault")
	file := filepath.Join(vault, "assets", "img_1.png")
	testutil.WriteTestFile(t, file, []byte("x"))

	moved, err := a.MoveToTrash(file, vault, deck.TrashMeta{Reason: "cut removed"})
	if err != nil {
		t.Fatalf("MoveToTrash() error = %v", err)
	}
	if filepath.Dir(moved) != deck.TrashDir(vault) {
		t.Errorf("moved to %q, want inside %q", moved, deck.TrashDir(vault))
	}

	items, err := a.ListTrash(vault)
	if err != nil || len(items) != 1 || items[0].Reason != "cut removed" {
		t.Fatalf("ListTrash() = %+v, %v", items, err)
	}

	n, err := a.PurgeTrash(vault)
	if err != nil || n != 0 {
		t.Errorf("PurgeTrash() = %d, %v", n, err)
	}

	restored, err := a.RestoreFromTrash(vault, items[0].ID)
	if err != nil {
		t.Fatalf("RestoreFromTrash() error = %v", err)
	}
	if restored != file || !testutil.FileExists(file) {
		t.Errorf("RestoreFromTrash() = %q, want %q", restored, file)
	}
}

func TestApp_Projects(t *testing.T) {
	a := newTestApp(t, nil)
	vault := filepath.Join(t.TempDir(), "vault")
	path := deck.ProjectPath(vault)

	saveProjectFile(t, a, path, model.ProjectState{Name: "Pilot", VaultPath: vault})

	loaded, err := a.LoadProject(path)
	if err != nil || loaded.Name != "Pilot" {
		t.Fatalf("LoadProject() = %+v, %v", loaded, err)
	}

	recent, err := a.RecentProjects(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].Path != path || recent[0].Name != "Pilot" {
		t.Errorf("RecentProjects() = %+v", recent)
	}

	if _, err := a.SaveProject(path, []byte("not json")); err == nil {
		t.Error("SaveProject(invalid) error = nil")
	}
	if _, err := a.LoadProject(""); err == nil {
		t.Error("LoadProject(\"\") error = nil without a chooser")
	}
}

func TestApp_VerifyAndSyncIndex(t *testing.T) {
	a := newTestApp(t, nil)
	dir := t.TempDir()
	vault := filepath.Join(dir, "vault")
	src := filepath.Join(dir, "a.png")
	testutil.WriteTestFile(t, src, []byte("a"))
	if res, _ := a.Import(src, vault, "a1"); !res.Success {
		t.Fatalf("Import() = %+v", res)
	}
	testutil.WriteTestFile(t, filepath.Join(vault, "assets", "stray.png"), []byte("stray"))

	report, err := a.VerifyAssets(vault)
	if err != nil {
		t.Fatalf("VerifyAssets() error = %v", err)
	}
	if len(report.Missing) != 0 || len(report.Orphaned) != 1 || report.Orphaned[0] != "stray.png" {
		t.Errorf("VerifyAssets() = %+v", report)
	}

	if _, err := a.SyncIndex(vault); err == nil {
		t.Error("SyncIndex() error = nil without a project file")
	}

	saveProjectFile(t, a, deck.ProjectPath(vault), model.ProjectState{
		Name:      "Pilot",
		VaultPath: vault,
		Scenes: []model.Scene{{ID: "s1", Name: "Open", Order: 1, Cuts: []model.Cut{
			{ID: "c1", AssetID: "a1", Order: 1, DisplayTime: 1},
		}}},
	})

	changed, err := a.SyncIndex(vault)
	if err != nil || !changed {
		t.Fatalf("SyncIndex() = %v, %v, want changed", changed, err)
	}
	idx := a.Gateway().LoadAssetIndex(vault)
	if len(idx.Assets[0].UsageRefs) != 1 || idx.Assets[0].UsageRefs[0].CutID != "c1" {
		t.Errorf("UsageRefs = %+v", idx.Assets[0].UsageRefs)
	}

	changed, err = a.SyncIndex(vault)
	if err != nil || changed {
		t.Errorf("second SyncIndex() = %v, %v, want unchanged", changed, err)
	}
}

func TestApp_PushRestore(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()
	dir := t.TempDir()
	vault := filepath.Join(dir, "vault")
	src := filepath.Join(dir, "a.png")
	testutil.WriteTestFile(t, src, []byte("pixels"))
	if res, _ := a.Import(src, vault, "a1"); !res.Success {
		t.Fatalf("Import() = %+v", res)
	}

	if err := a.InitKeys("secret"); err != nil {
		t.Fatalf("InitKeys() error = %v", err)
	}
	pushed, err := a.Push(ctx, vault)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if !pushed.Manifest.Encrypted || pushed.Uploaded != 1 {
		t.Errorf("Push() = %+v", pushed)
	}
	if len(pushed.Manifest.SnapshotID) != 26 {
		t.Errorf("SnapshotID = %q, want a ULID", pushed.Manifest.SnapshotID)
	}

	dest := filepath.Join(dir, "restored")
	if _, err := a.Restore(ctx, "latest", dest, ""); err == nil {
		t.Error("Restore() error = nil for encrypted snapshot without passphrase")
	}
	manifest, err := a.Restore(ctx, "latest", dest, "secret")
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if manifest.SnapshotID != pushed.Manifest.SnapshotID {
		t.Errorf("restored %q, want %q", manifest.SnapshotID, pushed.Manifest.SnapshotID)
	}
	got := testutil.ReadTestFile(t, filepath.Join(dest, filepath.FromSlash(pushed.Manifest.Files[0].Path)))
	if string(got) != "pixels" {
		t.Errorf("restored asset = %q", got)
	}

	history, err := a.BackupHistory(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 || history[2].Operation != "push" || history[2].Status != "success" {
		t.Errorf("BackupHistory() = %+v", history)
	}
}

func TestApp_PushWithoutTarget(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Backup = config.BackupConfig{}
	a := newTestApp(t, cfg)

	if _, err := a.Push(context.Background(), t.TempDir()); err == nil {
		t.Error("Push() error = nil without a backup target")
	}
}

func TestAutosaveConfig(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	got := AutosaveConfig(cfg.Autosave)

	if got.Fast.Debounce != cfg.Autosave.FastDebounce.Duration || got.Slow.MaxWait != cfg.Autosave.SlowMaxWait.Duration {
		t.Errorf("AutosaveConfig() = %+v", got)
	}
	if got.NoticeCooldown != cfg.Autosave.NoticeCooldown.Duration {
		t.Errorf("NoticeCooldown = %v", got.NoticeCooldown)
	}
}

func TestApp_MCPServer(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.MCP.DisabledTools = []string{"trash_purge"}
	a := newTestApp(t, cfg)

	tools := a.MCPServer("test").ListTools()
	if _, ok := tools["trash_purge"]; ok {
		t.Error("trash_purge registered despite being disabled")
	}
	if _, ok := tools["asset_import"]; !ok {
		t.Error("asset_import not registered")
	}
}

func TestApp_ServeMCPUnknownTool(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.MCP.DisabledTools = []string{"format_disk"}
	a := newTestApp(t, cfg)

	if err := a.ServeMCP("test"); err == nil {
		t.Fatal("ServeMCP() error = nil for unknown disabled tool")
	}
	if !a.op.Failed() {
		t.Error("operation not marked failed")
	}
}
