package record

import (
	"context"
	"fmt"
	"os"

	"github.com/Backblaze/blazer/b2"
)

// b2Sink uploads segments to a Backblaze B2 bucket via the blazer client.
// Account ID and application key come from the ambient environment, same
// credential-chain preference as the S3/GCS/Azure sinks above.
type b2Sink struct {
	bucket *b2.Bucket
}

func newB2Sink(ctx context.Context, bucket string) (Sink, error) {
	if bucket == "" {
		return nil, fmt.Errorf("b2 sink requires record_bucket")
	}
	keyID := os.Getenv("B2_ACCOUNT_ID")
	key := os.Getenv("B2_APPLICATION_KEY")
	if keyID == "" || key == "" {
		return nil, fmt.Errorf("b2 sink: B2_ACCOUNT_ID/B2_APPLICATION_KEY are not set")
	}
	client, err := b2.NewClient(ctx, keyID, key)
	if err != nil {
		return nil, fmt.Errorf("b2 sink: new client: %w", err)
	}
	b, err := client.Bucket(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("b2 sink: open bucket %q: %w", bucket, err)
	}
	return &b2Sink{bucket: b}, nil
}

func (s *b2Sink) Upload(ctx context.Context, key string, data []byte) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("b2 sink: write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("b2 sink: finalize %s: %w", key, err)
	}
	return nil
}

func (s *b2Sink) Close() error { return nil }
