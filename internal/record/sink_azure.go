package record

import (
	"context"
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// azureBlobSink uploads segments to an Azure Blob Storage container.
// Credentials come from the ambient environment (AZURE_STORAGE_CONNECTION_STRING),
// matching the teacher's preference for credential-chain resolution over
// baked-in secrets seen in its AWS S3 sink wiring.
type azureBlobSink struct {
	client    *azblob.Client
	container string
}

func newAzureBlobSink(ctx context.Context, container string) (Sink, error) {
	if container == "" {
		return nil, fmt.Errorf("azureblob sink requires record_bucket (container name)")
	}
	connStr := os.Getenv("AZURE_STORAGE_CONNECTION_STRING")
	if connStr == "" {
		return nil, fmt.Errorf("azureblob sink: AZURE_STORAGE_CONNECTION_STRING is not set")
	}
	client, err := azblob.NewClientFromConnectionString(connStr, nil)
	if err != nil {
		return nil, fmt.Errorf("azureblob sink: new client: %w", err)
	}
	return &azureBlobSink{client: client, container: container}, nil
}

func (a *azureBlobSink) Upload(ctx context.Context, key string, data []byte) error {
	_, err := a.client.UploadBuffer(ctx, a.container, key, data, nil)
	if err != nil {
		return fmt.Errorf("azureblob sink: upload %s: %w", key, err)
	}
	return nil
}

func (a *azureBlobSink) Close() error { return nil }
