package storage

import (
	"context"
	"fmt"

	"github.com/jaki95/dj-emulator/config"
)

// New returns the store selected by cfg.Type.
func New(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalFileStorage(cfg.Dir)
	case "gcs":
		return NewGCSStorage(ctx, cfg.Bucket, cfg.Prefix, cfg.CredentialsFile)
	}
	return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
}
