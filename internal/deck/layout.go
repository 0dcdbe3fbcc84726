package deck

import (
	"path/filepath"
	"strings"
)

// Vault layout, relative to the vault root:
//
//	<vault>/
//	  project.sdp            (project save file)
//	  assets/
//	    .index.json          (asset index)
//	    img_<hash12>.png     (hash-named media)
//	  .trash/
//	    .trash.json          (trash index)
//	    <name>[_<n>].<ext>   (quarantined files)
const (
	AssetsDirName      = "assets"
	AssetIndexFileName = ".index.json"
	TrashDirName       = ".trash"
	TrashIndexFileName = ".trash.json"
	ProjectFileName    = "project.sdp"
)

// AssetsDir returns the asset directory of a vault.
func AssetsDir(vaultPath string) string {
	return filepath.Join(vaultPath, AssetsDirName)
}

// AssetIndexPath returns the asset index file of a vault.
func AssetIndexPath(vaultPath string) string {
	return filepath.Join(vaultPath, AssetsDirName, AssetIndexFileName)
}

// TrashDir returns the trash directory of a vault.
func TrashDir(vaultPath string) string {
	return filepath.Join(vaultPath, TrashDirName)
}

// TrashIndexPath returns the trash index file inside a trash directory.
func TrashIndexPath(trashPath string) string {
	return filepath.Join(trashPath, TrashIndexFileName)
}

// ProjectPath returns the default project file of a vault.
func ProjectPath(vaultPath string) string {
	return filepath.Join(vaultPath, ProjectFileName)
}

// VaultRelative returns path relative to vaultPath with forward slashes when
// path lies inside the vault, and the cleaned absolute path otherwise.
func VaultRelative(vaultPath, path string) string {
	absVault, err := filepath.Abs(vaultPath)
	if err != nil {
		return path
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(absVault, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return absPath
	}
	return filepath.ToSlash(rel)
}
