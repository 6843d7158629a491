package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	config "github.com/inference-gateway/menu-agents/server/config"
	zap "go.uber.org/zap"
)

// ErrFileNotFound is returned by FileStore.Retrieve for a missing file
var ErrFileNotFound = errors.New("file not found")

// FileStore persists files uploaded through file/upload. Files are grouped
// under a key (typically the agent id) and addressed by filename.
type FileStore interface {
	// Store writes the file and returns the URL it is served from
	Store(ctx context.Context, key string, filename string, data io.Reader) (string, error)

	// Retrieve opens a stored file; callers close the reader
	Retrieve(ctx context.Context, key string, filename string) (io.ReadCloser, error)

	// Delete removes a stored file
	Delete(ctx context.Context, key string, filename string) error

	// Exists checks if a file is stored
	Exists(ctx context.Context, key string, filename string) (bool, error)

	// GetURL returns the public URL of a file
	GetURL(key string, filename string) string

	// Close releases backend resources
	Close() error
}

// FilesRoutePrefix is the path files are served under
const FilesRoutePrefix = "/files"

// CreateFileStore builds the FileStore selected by the files config
func CreateFileStore(ctx context.Context, cfg config.FilesConfig, logger *zap.Logger) (FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Provider {
	case "", "filesystem":
		logger.Info("using filesystem file store", zap.String("base_path", cfg.BasePath))
		return NewFilesystemFileStore(cfg.BasePath, cfg.BaseURL)
	case "minio":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("endpoint is required for minio file store")
		}
		logger.Info("using minio file store",
			zap.String("endpoint", cfg.Endpoint),
			zap.String("bucket", cfg.BucketName))
		return NewMinIOFileStore(ctx, cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.BucketName, cfg.BaseURL, cfg.UseSSL)
	default:
		return nil, fmt.Errorf("unsupported files provider: %s", cfg.Provider)
	}
}

// sanitizePath removes dangerous characters and path traversal attempts
func sanitizePath(path string) string {
	path = strings.ReplaceAll(path, "/", "")
	path = strings.ReplaceAll(path, "\\", "")
	path = strings.ReplaceAll(path, "..", "")
	path = strings.TrimSpace(path)
	return path
}

func sanitizeFileRef(key, filename string) (string, string, error) {
	key = sanitizePath(key)
	filename = sanitizePath(filename)
	if key == "" || filename == "" {
		return "", "", fmt.Errorf("invalid file key or filename")
	}
	return key, filename, nil
}

func fileURL(baseURL, key, filename string) string {
	return fmt.Sprintf("%s%s/%s/%s", baseURL, FilesRoutePrefix, sanitizePath(key), sanitizePath(filename))
}
