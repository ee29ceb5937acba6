package mirror

import (
	"context"
	"fmt"

	"hoard/internal/config"
	"hoard/internal/hoard"
)

// NewMirrorFromConfig creates a Mirror implementation based on the mirror config type.
func NewMirrorFromConfig(ctx context.Context, cfg config.MirrorConfig) (hoard.Mirror, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryMirror(cfg.Name), nil
	case "s3":
		return NewS3Mirror(ctx, S3Options{
			Name:            cfg.Name,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	case "filesystem":
		if cfg.FSMirrorRoot == "" {
			return nil, fmt.Errorf("filesystem mirror requires fs_mirror_root to be set")
		}
		return NewFileSystemMirror(cfg.Name, cfg.FSMirrorRoot)
	case "":
		return nil, fmt.Errorf("no mirror configured")
	default:
		return nil, fmt.Errorf("unknown mirror type: %s", cfg.Type)
	}
}
