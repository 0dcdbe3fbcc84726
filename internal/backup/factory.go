package backup

import (
	"context"
	"fmt"

	"scenedeck/internal/config"
	"scenedeck/internal/deck"
)

// NewTargetFromConfig creates the BackupTarget selected by cfg.Type.
func NewTargetFromConfig(ctx context.Context, cfg config.BackupConfig) (deck.BackupTarget, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryTarget(), nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem backup requires root to be set")
		}
		return NewFileSystemTarget(cfg.Root)
	case "s3":
		return NewS3Target(ctx, cfg)
	case "":
		return nil, fmt.Errorf("no backup target configured")
	default:
		return nil, fmt.Errorf("unknown backup type: %s", cfg.Type)
	}
}
