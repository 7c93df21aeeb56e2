package sink

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// objectOpener returns a writer for bucket/object. The object is committed
// when the writer is closed.
type objectOpener func(ctx context.Context, bucket, object, contentType string) io.WriteCloser

// GCSWriter uploads artifacts to Google Cloud Storage under
// <prefix>/<run-id>/<name>.
type GCSWriter struct {
	open   objectOpener
	close  func() error
	bucket string
	prefix string
}

// NewGCSWriter uses application default credentials.
func NewGCSWriter(ctx context.Context, bucket, prefix string) (*GCSWriter, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	open := func(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		return w
	}
	return &GCSWriter{open: open, close: client.Close, bucket: bucket, prefix: prefix}, nil
}

// NewGCSWriterWith is only for tests to inject a fake opener.
func NewGCSWriterWith(open objectOpener, bucket, prefix string) *GCSWriter {
	return &GCSWriter{open: open, bucket: bucket, prefix: prefix}
}

func (g *GCSWriter) Write(ctx context.Context, a Artifact) error {
	w := g.open(ctx, g.bucket, objectKey(g.prefix, a.RunID, a.Name), a.ContentType)
	if _, err := w.Write(a.Data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write %s: %w", a.Name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close %s: %w", a.Name, err)
	}
	return nil
}

func (g *GCSWriter) Close() error {
	if g.close == nil {
		return nil
	}
	return g.close()
}
