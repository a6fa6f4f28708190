package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStorage implements Store on a Google Cloud Storage bucket.
type GCSStorage struct {
	client       *storage.Client
	bucket       string
	objectPrefix string
	ctx          context.Context
}

// NewGCSStorage creates a client using credentialsFile, or application
// default credentials when it is empty.
func NewGCSStorage(ctx context.Context, bucketName, objectPrefix, credentialsFile string) (*GCSStorage, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("gcs storage requires a bucket")
	}

	var client *storage.Client
	var err error
	if credentialsFile != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorage{
		client:       client,
		bucket:       bucketName,
		objectPrefix: strings.Trim(objectPrefix, "/"),
		ctx:          ctx,
	}, nil
}

func (s *GCSStorage) objectName(name string) string {
	name = strings.TrimPrefix(name, "/")
	if s.objectPrefix != "" {
		return s.objectPrefix + "/" + name
	}
	return name
}

func (s *GCSStorage) Root() string {
	if s.objectPrefix != "" {
		return fmt.Sprintf("gs://%s/%s", s.bucket, s.objectPrefix)
	}
	return "gs://" + s.bucket
}

func (s *GCSStorage) Reader(name string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.objectName(name)).NewReader(s.ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return r, err
}

// WriteAtomic uploads data in one object write. GCS only makes an object
// visible once the writer is closed, so readers never see partial data.
func (s *GCSStorage) WriteAtomic(name string, data []byte) error {
	ctx, cancel := context.WithTimeout(s.ctx, time.Minute)
	defer cancel()

	wc := s.client.Bucket(s.bucket).Object(s.objectName(name)).NewWriter(ctx)
	wc.ContentType = "application/json"
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to write %s to GCS: %w", name, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (s *GCSStorage) Exists(name string) bool {
	_, err := s.client.Bucket(s.bucket).Object(s.objectName(name)).Attrs(s.ctx)
	return err == nil
}

// Close closes the GCS client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}
