package archive

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// Archiver stores submitted captures for audit. Archiving is best-effort:
// a failed store must never fail or delay a submission.
type Archiver interface {
	Store(ctx context.Context, captureID string, jpegData []byte) error
}

type blobArchiver struct {
	client    *azblob.Client
	container string
}

// NewBlobArchiver creates an archiver backed by Azure Blob Storage
func NewBlobArchiver(accountName, accountKey, container string) (Archiver, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, err
	}

	return &blobArchiver{client: client, container: container}, nil
}

// Store uploads one captured frame under its capture ID
func (a *blobArchiver) Store(ctx context.Context, captureID string, jpegData []byte) error {
	blobName := captureID + ".jpg"
	_, err := a.client.UploadBuffer(ctx, a.container, blobName, jpegData, nil)
	if err != nil {
		return fmt.Errorf("upload capture %s: %w", captureID, err)
	}
	return nil
}

type noopArchiver struct{}

// NewNoopArchiver creates an archiver that discards captures. Used when no
// blob storage is configured.
func NewNoopArchiver() Archiver {
	return noopArchiver{}
}

func (noopArchiver) Store(ctx context.Context, captureID string, jpegData []byte) error {
	return nil
}
