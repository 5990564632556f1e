package artifact

import (
	"context"
	"fmt"
	"strings"

	"github.com/unisonhq/unison/internal/provider"
)

// Selector routes an upload to the storage variant its destination path
// belongs to. Either slot may be nil when the matching backend is not
// configured.
type Selector struct {
	S3      provider.StorageProvider
	Volumes provider.StorageProvider
}

// ForPath picks the storage provider for a destination path.
func (s *Selector) ForPath(path string) (provider.StorageProvider, error) {
	switch {
	case strings.HasPrefix(path, "s3://"):
		if s.S3 == nil {
			return nil, fmt.Errorf("no s3 storage configured for %s", path)
		}
		return s.S3, nil
	case strings.HasPrefix(path, "/Volumes/"):
		if s.Volumes == nil {
			return nil, fmt.Errorf("no volume storage configured for %s", path)
		}
		return s.Volumes, nil
	default:
		return nil, fmt.Errorf("no storage backend for path %s", path)
	}
}

// Upload resolves the backend for path and uploads through it.
func (s *Selector) Upload(ctx context.Context, content []byte, path string, overwrite bool) error {
	store, err := s.ForPath(path)
	if err != nil {
		return err
	}
	return store.UploadFile(ctx, content, path, overwrite)
}
