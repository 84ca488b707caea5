package storage

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/sirupsen/logrus"

	"go-xray-inspector/internal/logger"
	"go-xray-inspector/pkg/validation"
)

type azureStorage struct {
	client  *azblob.Client
	account string
}

// NewAzureStorage creates a fetcher for azblob://container/blob references.
// An empty key gives anonymous access to public containers.
func NewAzureStorage(accountName string, accountKey string) (ImageFetcher, error) {
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", accountName)

	var client *azblob.Client
	var err error
	if accountKey == "" {
		client, err = azblob.NewClientWithNoCredential(serviceURL, nil)
	} else {
		credential, credErr := azblob.NewSharedKeyCredential(accountName, accountKey)
		if credErr != nil {
			return nil, fmt.Errorf("invalid azure credentials: %w", credErr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return &azureStorage{client: client, account: accountName}, nil
}

func (s *azureStorage) FetchImage(ctx context.Context, ref string) (image.Image, error) {
	containerName, blobName, err := validation.ParseBlobRef(ref)
	if err != nil {
		return nil, err
	}

	downloadResponse, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		fields := logrus.Fields{"account": s.account, "container": containerName, "blob": blobName}
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			fields["status_code"] = respErr.StatusCode
			fields["error_code"] = respErr.ErrorCode
		}
		logger.WithFields(fields).WithError(err).Error("Blob download failed")
		return nil, fmt.Errorf("download failed: %w", err)
	}

	retryReader := downloadResponse.Body
	defer retryReader.Close()

	return DecodeReader(retryReader)
}
