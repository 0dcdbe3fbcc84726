package deck_test

import (
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"scenedeck/internal/assetindex"
	"scenedeck/internal/deck"
	"scenedeck/internal/errors"
	"scenedeck/internal/model"
	"scenedeck/internal/project"
	"scenedeck/internal/store"
	"scenedeck/internal/testutil"
	"scenedeck/internal/trash"
)

type gatewayFixture struct {
	gw    *deck.Gateway
	fs    *testutil.FailingFS
	vault string
	src   string
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	root := t.TempDir()
	fsys := testutil.NewFailingFS()
	clock := testutil.FixedClock()
	logger := deck.NewNopLogger()

	indexer := assetindex.NewIndexer(fsys, logger, nil)
	st := store.NewStore(fsys, deck.SHA256Hasher{}, indexer, clock, logger, t.TempDir())
	bin := trash.NewTrash(fsys, indexer, clock, testutil.NewStubIDGenerator(), logger, 0)
	projects := project.NewStore(fsys, nil, nil, clock, logger)

	return &gatewayFixture{
		gw:    deck.NewGateway(st, indexer, bin, projects, logger),
		fs:    fsys,
		vault: filepath.Join(root, "vault"),
		src:   filepath.Join(root, "src"),
	}
}

func TestGateway_ImportAsset(t *testing.T) {
	f := newGatewayFixture(t)
	src := filepath.Join(f.src, "shot.png")
	testutil.WriteTestFile(t, src, []byte("pixels"))
	hash := testutil.SHA256Hex([]byte("pixels"))

	first := f.gw.ImportAsset(src, f.vault, "asset-1")
	if !first.Success || first.Error != "" {
		t.Fatalf("ImportAsset() = %+v, want success", first)
	}
	if first.Hash != hash || first.IsDuplicate {
		t.Errorf("ImportAsset() = %+v", first)
	}
	wantRel := "assets/img_" + hash[:12] + ".png"
	if first.RelativePath != wantRel {
		t.Errorf("RelativePath = %q, want %q", first.RelativePath, wantRel)
	}
	if !filepath.IsAbs(first.VaultPath) || !testutil.FileExists(first.VaultPath) {
		t.Errorf("VaultPath = %q, want existing absolute path", first.VaultPath)
	}

	second := f.gw.ImportAsset(src, f.vault, "asset-2")
	if !second.Success || !second.IsDuplicate || second.RelativePath != wantRel {
		t.Errorf("second ImportAsset() = %+v, want duplicate of %s", second, wantRel)
	}
}

func TestGateway_ImportAssetFailures(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		wantCode errors.ErrorCode
	}{
		{"unsupported extension", "notes.txt", errors.ErrUnsupportedType},
		{"missing source", "", errors.ErrIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGatewayFixture(t)
			src := filepath.Join(f.src, "absent.png")
			if tt.file != "" {
				src = filepath.Join(f.src, tt.file)
				testutil.WriteTestFile(t, src, []byte("text"))
			}

			got := f.gw.ImportAsset(src, f.vault, "asset-1")
			if got.Success {
				t.Fatalf("ImportAsset() = %+v, want failure", got)
			}
			if got.Code != string(tt.wantCode) || got.Error == "" {
				t.Errorf("ImportAsset() = %+v, want code %s", got, tt.wantCode)
			}
			if got.VaultPath != "" || got.Hash != "" {
				t.Errorf("failed import carries data: %+v", got)
			}
		})
	}
}

func TestGateway_ImportDataURLAsset(t *testing.T) {
	f := newGatewayFixture(t)

	good := f.gw.ImportDataURLAsset("data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("pasted")), f.vault, "asset-1")
	if !good.Success || !strings.HasSuffix(good.RelativePath, ".png") {
		t.Errorf("ImportDataURLAsset() = %+v", good)
	}

	bad := f.gw.ImportDataURLAsset("data:image/png,raw", f.vault, "asset-2")
	if bad.Success || bad.Code != string(errors.ErrInvalidDataURL) {
		t.Errorf("ImportDataURLAsset(invalid) = %+v", bad)
	}
}

func TestImportResult_JSON(t *testing.T) {
	data, err := json.Marshal(deck.ImportResult{Error: "Unsupported file type", Code: "UNSUPPORTED_TYPE"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"success":false,"error":"Unsupported file type","code":"UNSUPPORTED_TYPE"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestGateway_AssetIndex(t *testing.T) {
	f := newGatewayFixture(t)

	if f.gw.SaveAssetIndex(f.vault, nil) {
		t.Error("SaveAssetIndex(nil) = true")
	}

	idx := model.NewAssetIndex()
	idx.Upsert(model.AssetIndexEntry{ID: "a1", Hash: "h", Filename: "img_h.png", Type: model.MediaImage})
	if !f.gw.SaveAssetIndex(f.vault, idx) {
		t.Fatal("SaveAssetIndex() = false")
	}
	loaded := f.gw.LoadAssetIndex(f.vault)
	if loaded == nil || len(loaded.Assets) != 1 || loaded.Assets[0].ID != "a1" {
		t.Fatalf("LoadAssetIndex() = %+v", loaded)
	}

	report := f.gw.VerifyAssets(f.vault)
	if report == nil || len(report.Missing) != 1 || report.Missing[0] != "img_h.png" {
		t.Errorf("VerifyAssets() = %+v, want img_h.png missing", report)
	}

	f.fs.WriteFn = func(string) error { return errors.NewIO("write", nil) }
	if f.gw.SaveAssetIndex(f.vault, idx) {
		t.Error("SaveAssetIndex() = true with failing writes")
	}
}

func TestGateway_TrashLifecycle(t *testing.T) {
	f := newGatewayFixture(t)
	file := filepath.Join(f.vault, "assets", "old.png")
	testutil.WriteTestFile(t, file, []byte("old"))

	moved := f.gw.MoveToTrash(file, deck.TrashDir(f.vault), deck.TrashMeta{Reason: "deleted"})
	if moved == "" || testutil.FileExists(file) || !testutil.FileExists(moved) {
		t.Fatalf("MoveToTrash() = %q", moved)
	}

	items := f.gw.ListTrash(f.vault)
	if len(items) != 1 || items[0].ID != "id-1" {
		t.Fatalf("ListTrash() = %+v", items)
	}
	if n := f.gw.PurgeTrash(f.vault); n != 0 {
		t.Errorf("PurgeTrash() = %d, want 0 before retention elapses", n)
	}

	if got := f.gw.RestoreFromTrash(f.vault, "unknown"); got != "" {
		t.Errorf("RestoreFromTrash(unknown) = %q, want empty", got)
	}
	restored := f.gw.RestoreFromTrash(f.vault, "id-1")
	if restored != file || !testutil.FileExists(file) {
		t.Errorf("RestoreFromTrash() = %q, want %q", restored, file)
	}
	if items := f.gw.ListTrash(f.vault); len(items) != 0 {
		t.Errorf("ListTrash() after restore = %+v", items)
	}
}

func TestGateway_MoveToTrashFailure(t *testing.T) {
	f := newGatewayFixture(t)
	if got := f.gw.MoveToTrash(filepath.Join(f.vault, "absent.png"), deck.TrashDir(f.vault), deck.TrashMeta{}); got != "" {
		t.Errorf("MoveToTrash(missing) = %q, want empty", got)
	}
}

func TestGateway_Projects(t *testing.T) {
	f := newGatewayFixture(t)
	payload := model.BuildProjectSavePayload(model.ProjectState{Name: "Pilot", VaultPath: f.vault}, testutil.FixedClock().Now())
	data, err := model.SerializeProjectSavePayload(payload)
	if err != nil {
		t.Fatal(err)
	}
	path := deck.ProjectPath(f.vault)

	if got := f.gw.SaveProject(path, data); got != path {
		t.Fatalf("SaveProject() = %q, want %q", got, path)
	}
	loaded := f.gw.LoadProject(path)
	if loaded == nil || loaded.Name != "Pilot" {
		t.Fatalf("LoadProject() = %+v", loaded)
	}

	t.Run("no chooser cancels", func(t *testing.T) {
		if got := f.gw.SaveProject("", data); got != "" {
			t.Errorf("SaveProject(\"\") = %q, want empty", got)
		}
		if got := f.gw.LoadProject(""); got != nil {
			t.Errorf("LoadProject(\"\") = %+v, want nil", got)
		}
	})

	t.Run("missing and malformed", func(t *testing.T) {
		if got := f.gw.LoadProject(filepath.Join(f.vault, "absent.sdp")); got != nil {
			t.Errorf("LoadProject(missing) = %+v", got)
		}
		bad := filepath.Join(f.vault, "bad.sdp")
		testutil.WriteTestFile(t, bad, []byte("{"))
		if got := f.gw.LoadProject(bad); got != nil {
			t.Errorf("LoadProject(malformed) = %+v", got)
		}
	})

	t.Run("recent without list", func(t *testing.T) {
		got := f.gw.RecentProjects(5)
		if got == nil || len(got) != 0 {
			t.Errorf("RecentProjects() = %v, want empty", got)
		}
	})
}
