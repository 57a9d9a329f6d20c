package stage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yungbote/driveline/internal/domain/drive"
	"github.com/yungbote/driveline/internal/platform/logger"
)

// GCS is the staging area adapter. The record carries the staging prefix as
// a gs:// URI in stage_sub_category; every operation here is scoped to that
// prefix so cleanup can never touch another window's objects.
type GCS struct {
	client *storage.Client
	log    *logger.Logger
}

func NewGCS(ctx context.Context, log *logger.Logger, opts ...option.ClientOption) (*GCS, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCS{client: client, log: log.With("connector", "GCSStage")}, nil
}

func (g *GCS) Close() error { return g.client.Close() }

// SplitURI breaks a gs://bucket/prefix URI into its bucket and object
// prefix parts.
func SplitURI(uri string) (bucket, prefix string, err error) {
	trimmed := strings.TrimPrefix(uri, "gs://")
	if trimmed == uri || trimmed == "" {
		return "", "", fmt.Errorf("not a gs:// uri: %q", uri)
	}
	parts := strings.SplitN(trimmed, "/", 2)
	bucket = parts[0]
	if len(parts) == 2 {
		prefix = parts[1]
	}
	return bucket, prefix, nil
}

// Upload writes one object under the record's staging prefix.
func (g *GCS) Upload(ctx context.Context, rec *drive.DriveRecord, name string, data io.Reader) error {
	bucket, prefix, err := SplitURI(rec.StageSubCategory)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	key := prefix + name
	w := g.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/x-ndjson"
	if _, err := io.Copy(w, data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

// ListKeys returns the object keys currently staged for the record.
func (g *GCS) ListKeys(ctx context.Context, rec *drive.DriveRecord) ([]string, error) {
	bucket, prefix, err := SplitURI(rec.StageSubCategory)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	it := g.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

// Open returns a reader for one staged object.
func (g *GCS) Open(ctx context.Context, rec *drive.DriveRecord, key string) (io.ReadCloser, error) {
	bucket, _, err := SplitURI(rec.StageSubCategory)
	if err != nil {
		return nil, err
	}
	r, err := g.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS object %q: %w", key, err)
	}
	return r, nil
}

// Delete removes every object under the record's staging prefix. A missing
// prefix is not an error; cleanup runs before every transfer attempt.
func (g *GCS) Delete(ctx context.Context, rec *drive.DriveRecord) error {
	bucket, _, err := SplitURI(rec.StageSubCategory)
	if err != nil {
		return err
	}
	keys, err := g.ListKeys(ctx, rec)
	if err != nil {
		return err
	}
	for _, k := range keys {
		dctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := g.client.Bucket(bucket).Object(k).Delete(dctx)
		cancel()
		if err != nil && err != storage.ErrObjectNotExist {
			return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", k, bucket, err)
		}
	}
	if len(keys) > 0 {
		g.log.Info("cleared staging prefix", "pipeline_id", rec.PipelineID, "objects", len(keys))
	}
	return nil
}
