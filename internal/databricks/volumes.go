package databricks

import (
	"context"
	"fmt"
	"strings"

	"github.com/unisonhq/unison/internal/provider"
)

// VolumeStorage uploads artifacts to Unity Catalog volumes. It is the
// storage variant selected for /Volumes/ destination paths.
type VolumeStorage struct {
	client *Client
}

// NewVolumeStorage wraps a workspace client.
func NewVolumeStorage(client *Client) *VolumeStorage {
	return &VolumeStorage{client: client}
}

var _ provider.StorageProvider = (*VolumeStorage)(nil)

// UploadFile writes content to a volume path.
func (s *VolumeStorage) UploadFile(ctx context.Context, content []byte, path string, overwrite bool) error {
	if !strings.HasPrefix(path, "/Volumes/") {
		return fmt.Errorf("volume path must start with /Volumes/: %s", path)
	}
	return s.client.UploadFile(ctx, path, content, overwrite)
}
