package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"
	apierrors "github.com/yairfalse/apidrift/internal/errors"
	"github.com/yairfalse/apidrift/internal/retry"
	"github.com/yairfalse/apidrift/pkg/config"
)

// AzureStore is an ObjectStore backed by one Azure Blob container
type AzureStore struct {
	container azblob.ContainerURL
	account   string
	name      string
}

// NewAzureStore builds a pipeline with the account key, or with an
// anonymous credential plus SAS token
func NewAzureStore(cfg config.BackendConfig) (*AzureStore, error) {
	var credential azblob.Credential
	if cfg.AccountKey != "" {
		shared, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err != nil {
			return nil, apierrors.AzureCredentialsError(err)
		}
		credential = shared
	} else {
		credential = azblob.NewAnonymousCredential()
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	}
	raw := strings.TrimSuffix(endpoint, "/") + "/" + cfg.Container
	if cfg.AccountKey == "" && cfg.SASToken != "" {
		raw += "?" + strings.TrimPrefix(cfg.SASToken, "?")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, apierrors.BackendConfigError(apierrors.BackendAzure, cfg.Name, fmt.Sprintf("invalid container URL: %v", err))
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	return &AzureStore{
		container: azblob.NewContainerURL(*u, pipeline),
		account:   cfg.AccountName,
		name:      cfg.Container,
	}, nil
}

func (s *AzureStore) Put(ctx context.Context, key string, data []byte) error {
	blob := s.container.NewBlockBlobURL(key)
	_, err := azblob.UploadBufferToBlockBlob(ctx, data, blob, azblob.UploadToBlockBlobOptions{
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{ContentType: "application/json"},
	})
	if err != nil {
		return classifyAzureError(fmt.Errorf("failed to upload %s: %w", s.Location(key), err))
	}
	return nil
}

func (s *AzureStore) Get(ctx context.Context, key string) ([]byte, error) {
	blob := s.container.NewBlockBlobURL(key)

	resp, err := blob.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if isAzureServiceCode(err, azblob.ServiceCodeBlobNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, classifyAzureError(fmt.Errorf("failed to download %s: %w", s.Location(key), err))
	}

	body := resp.Body(azblob.RetryReaderOptions{MaxRetryRequests: 3})
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Location(key), err)
	}
	return data, nil
}

func (s *AzureStore) Delete(ctx context.Context, key string) error {
	blob := s.container.NewBlockBlobURL(key)
	_, err := blob.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{})
	if err != nil && !isAzureServiceCode(err, azblob.ServiceCodeBlobNotFound) {
		return classifyAzureError(fmt.Errorf("failed to delete %s: %w", s.Location(key), err))
	}
	return nil
}

func (s *AzureStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo

	for marker := (azblob.Marker{}); marker.NotDone(); {
		resp, err := s.container.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{Prefix: prefix})
		if err != nil {
			return nil, classifyAzureError(fmt.Errorf("failed to list %s: %w", s.Location(prefix), err))
		}
		marker = resp.NextMarker

		for _, item := range resp.Segment.BlobItems {
			info := ObjectInfo{Key: item.Name, LastModified: item.Properties.LastModified}
			if item.Properties.ContentLength != nil {
				info.Size = *item.Properties.ContentLength
			}
			objects = append(objects, info)
		}
	}
	return objects, nil
}

func (s *AzureStore) Location(key string) string {
	return fmt.Sprintf("azure://%s/%s/%s", s.account, s.name, key)
}

// Close is a no-op; pipelines are stateless
func (s *AzureStore) Close() error { return nil }

func isAzureServiceCode(err error, codes ...azblob.ServiceCodeType) bool {
	var stgErr azblob.StorageError
	if !errors.As(err, &stgErr) {
		return false
	}
	for _, code := range codes {
		if stgErr.ServiceCode() == code {
			return true
		}
	}
	return false
}

func classifyAzureError(err error) error {
	if isAzureServiceCode(err,
		azblob.ServiceCodeAuthenticationFailed,
		azblob.ServiceCodeInsufficientAccountPermissions,
		"AuthorizationFailure",
		"AuthorizationPermissionMismatch",
	) {
		return retry.Permanent(apierrors.AzureCredentialsError(err))
	}
	if isAzureServiceCode(err, azblob.ServiceCodeContainerNotFound) {
		return retry.Permanent(err)
	}
	return err
}
