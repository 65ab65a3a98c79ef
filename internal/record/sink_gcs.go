package record

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// gcsSink uploads segments to a Google Cloud Storage bucket, grounded on
// the pack's cloud.google.com/go/storage usage (helixml-helix's
// filestore.GCSStorage.WriteFile): a bucket handle plus a per-object
// writer, credentials resolved from the ambient environment (ADC) rather
// than a service-account key file, since a LAN lighting daemon runs
// unattended and shouldn't need a key file baked into its config.
type gcsSink struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

func newGCSSink(ctx context.Context, bucket string) (Sink, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs sink requires record_bucket")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs sink: new client: %w", err)
	}
	return &gcsSink{client: client, bucket: client.Bucket(bucket)}, nil
}

func (g *gcsSink) Upload(ctx context.Context, key string, data []byte) error {
	w := g.bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return fmt.Errorf("gcs sink: write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs sink: finalize %s: %w", key, err)
	}
	return nil
}

func (g *gcsSink) Close() error {
	return g.client.Close()
}
