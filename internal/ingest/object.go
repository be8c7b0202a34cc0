package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"overlaystudio/internal/config"
	"overlaystudio/internal/jobs"
	"overlaystudio/internal/services"
)

// ObjectGetter is the subset of the minio client the fetcher needs.
type ObjectGetter interface {
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
}

// ObjectFetcher downloads s3://bucket/key sources from an S3-compatible store.
type ObjectFetcher struct {
	client ObjectGetter
	dir    string
	now    func() time.Time
}

// NewObjectFetcher connects to the store described by the [storage] section.
func NewObjectFetcher(cfg config.Storage, dir string) (*ObjectFetcher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ingest", "object storage", "create client", err)
	}
	return NewObjectFetcherWithClient(client, dir), nil
}

// NewObjectFetcherWithClient uses an existing client.
func NewObjectFetcherWithClient(client ObjectGetter, dir string) *ObjectFetcher {
	return &ObjectFetcher{client: client, dir: dir, now: time.Now}
}

// Name implements Strategy.
func (o *ObjectFetcher) Name() string { return "object-storage" }

// Supports implements Strategy.
func (o *ObjectFetcher) Supports(kind jobs.SourceKind) bool {
	return kind == jobs.SourceObject
}

// Fetch implements Strategy.
func (o *ObjectFetcher) Fetch(ctx context.Context, req Request) (Media, error) {
	bucket, key, err := ParseObjectURL(req.SourceURL)
	if err != nil {
		return Media{}, err
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return Media{}, fmt.Errorf("object fetch: ensure uploads dir: %w", err)
	}
	name := fmt.Sprintf("object-%s-%s%s", req.JobID, stamp(o.now()), videoExtension(key))
	path := filepath.Join(o.dir, name)
	if err := o.client.FGetObject(ctx, bucket, key, path, minio.GetObjectOptions{}); err != nil {
		_ = os.Remove(path)
		return Media{}, services.Wrap(services.ErrExternalTool, "input-download", "object storage", fmt.Sprintf("get %s/%s", bucket, key), err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Media{}, fmt.Errorf("object fetch: stat download: %w", err)
	}
	return Media{
		Path:         path,
		OriginalName: filepath.Base(key),
		SizeBytes:    info.Size(),
		MimeType:     mimeFor(key, ""),
	}, nil
}
