package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemFileStore implements FileStore on the local filesystem
type FilesystemFileStore struct {
	basePath string
	baseURL  string
}

var _ FileStore = (*FilesystemFileStore)(nil)

// NewFilesystemFileStore creates the base directory and returns the store
func NewFilesystemFileStore(basePath, baseURL string) (*FilesystemFileStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create files directory: %w", err)
	}

	return &FilesystemFileStore{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Store writes the file under basePath/key/filename
func (fs *FilesystemFileStore) Store(ctx context.Context, key string, filename string, data io.Reader) (string, error) {
	key, filename, err := sanitizeFileRef(key, filename)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(fs.basePath, key)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create file directory: %w", err)
	}

	filePath := filepath.Join(dir, filename)
	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	if _, err := io.Copy(file, data); err != nil {
		_ = os.Remove(filePath)
		return "", fmt.Errorf("failed to write file data: %w", err)
	}

	return fs.GetURL(key, filename), nil
}

// Retrieve opens a stored file
func (fs *FilesystemFileStore) Retrieve(ctx context.Context, key string, filename string) (io.ReadCloser, error) {
	key, filename, err := sanitizeFileRef(key, filename)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(fs.basePath, key, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete removes a stored file and its directory once empty
func (fs *FilesystemFileStore) Delete(ctx context.Context, key string, filename string) error {
	key, filename, err := sanitizeFileRef(key, filename)
	if err != nil {
		return err
	}

	err = os.Remove(filepath.Join(fs.basePath, key, filename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	_ = os.Remove(filepath.Join(fs.basePath, key))
	return nil
}

// Exists checks if a file is stored
func (fs *FilesystemFileStore) Exists(ctx context.Context, key string, filename string) (bool, error) {
	key, filename, err := sanitizeFileRef(key, filename)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(filepath.Join(fs.basePath, key, filename)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return true, nil
}

// GetURL returns the public URL of a file
func (fs *FilesystemFileStore) GetURL(key string, filename string) string {
	return fileURL(fs.baseURL, key, filename)
}

// Close is a no-op for the filesystem store
func (fs *FilesystemFileStore) Close() error {
	return nil
}
