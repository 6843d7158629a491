package server

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	minio "github.com/minio/minio-go/v7"
	credentials "github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOFileStore implements FileStore on MinIO or any S3 compatible backend
type MinIOFileStore struct {
	client     *minio.Client
	bucketName string
	baseURL    string
}

var _ FileStore = (*MinIOFileStore)(nil)

// NewMinIOFileStore connects to the endpoint and creates the bucket when missing
func NewMinIOFileStore(ctx context.Context, endpoint, accessKey, secretKey, bucketName, baseURL string, useSSL bool) (*MinIOFileStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinIOFileStore{
		client:     client,
		bucketName: bucketName,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func objectName(key, filename string) string {
	return key + "/" + filename
}

// Store uploads the file as key/filename
func (m *MinIOFileStore) Store(ctx context.Context, key string, filename string, data io.Reader) (string, error) {
	key, filename, err := sanitizeFileRef(key, filename)
	if err != nil {
		return "", err
	}

	opts := minio.PutObjectOptions{}
	if contentType := mime.TypeByExtension(filepath.Ext(filename)); contentType != "" {
		opts.ContentType = contentType
	}

	if _, err := m.client.PutObject(ctx, m.bucketName, objectName(key, filename), data, -1, opts); err != nil {
		return "", fmt.Errorf("failed to store file in MinIO: %w", err)
	}

	return m.GetURL(key, filename), nil
}

// Retrieve opens a stored object
func (m *MinIOFileStore) Retrieve(ctx context.Context, key string, filename string) (io.ReadCloser, error) {
	key, filename, err := sanitizeFileRef(key, filename)
	if err != nil {
		return nil, err
	}

	exists, err := m.Exists(ctx, key, filename)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrFileNotFound
	}

	object, err := m.client.GetObject(ctx, m.bucketName, objectName(key, filename), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve file from MinIO: %w", err)
	}

	return object, nil
}

// Delete removes a stored object
func (m *MinIOFileStore) Delete(ctx context.Context, key string, filename string) error {
	key, filename, err := sanitizeFileRef(key, filename)
	if err != nil {
		return err
	}

	if err := m.client.RemoveObject(ctx, m.bucketName, objectName(key, filename), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete file from MinIO: %w", err)
	}

	return nil
}

// Exists checks if an object is stored
func (m *MinIOFileStore) Exists(ctx context.Context, key string, filename string) (bool, error) {
	key, filename, err := sanitizeFileRef(key, filename)
	if err != nil {
		return false, err
	}

	_, err = m.client.StatObject(ctx, m.bucketName, objectName(key, filename), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence in MinIO: %w", err)
	}

	return true, nil
}

// GetURL returns the public URL of a file
func (m *MinIOFileStore) GetURL(key string, filename string) string {
	return fileURL(m.baseURL, key, filename)
}

// Close is a no-op; the MinIO client holds no persistent connection
func (m *MinIOFileStore) Close() error {
	return nil
}
