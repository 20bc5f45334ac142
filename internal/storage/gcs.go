package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	apierrors "github.com/yairfalse/apidrift/internal/errors"
	"github.com/yairfalse/apidrift/internal/retry"
	"github.com/yairfalse/apidrift/pkg/config"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStore is an ObjectStore backed by one Cloud Storage bucket
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// NewGCSStore creates a client using a service account file when one is
// configured, application default credentials otherwise
func NewGCSStore(ctx context.Context, cfg config.BackendConfig) (*GCSStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, apierrors.GCSCredentialsError(err)
	}

	return &GCSStore{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		name:   cfg.Bucket,
	}, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		w.Close()
		return classifyGCSError(fmt.Errorf("failed to upload %s: %w", s.Location(key), err))
	}
	if err := w.Close(); err != nil {
		return classifyGCSError(fmt.Errorf("failed to upload %s: %w", s.Location(key), err))
	}
	return nil
}

func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, classifyGCSError(fmt.Errorf("failed to download %s: %w", s.Location(key), err))
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Location(key), err)
	}
	return data, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return classifyGCSError(fmt.Errorf("failed to delete %s: %w", s.Location(key), err))
	}
	return nil
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})

	var objects []ObjectInfo
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classifyGCSError(fmt.Errorf("failed to list %s: %w", s.Location(prefix), err))
		}
		objects = append(objects, ObjectInfo{
			Key:          attrs.Name,
			Size:         attrs.Size,
			LastModified: attrs.Updated,
		})
	}
	return objects, nil
}

func (s *GCSStore) Location(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.name, key)
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func classifyGCSError(err error) error {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return err
	}
	switch gErr.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return retry.Permanent(apierrors.GCSCredentialsError(err))
	case http.StatusNotFound:
		// the bucket itself is missing
		return retry.Permanent(err)
	}
	return err
}
