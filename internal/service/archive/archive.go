// Package archive copies finished captures to an S3 bucket.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"camserver/internal/logger"
	"camserver/internal/model"
	"camserver/internal/service/events"
	"camserver/internal/service/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the part of *s3.Client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Source reads the files of a capture.
type Source interface {
	Open(id string, kind storage.Kind) (io.ReadCloser, error)
	ReadMeta(id string) (*model.ImageMeta, error)
}

// NewS3Client builds an S3 client from the default credential chain.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// Archiver uploads every finished capture under <prefix>/<id>/.
type Archiver struct {
	client ObjectPutter
	source Source
	bucket string
	prefix string
	logger *logger.Logger
}

func NewArchiver(client ObjectPutter, source Source, bucket, prefix string, logger *logger.Logger) *Archiver {
	return &Archiver{
		client: client,
		source: source,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

// Run archives events until the channel closes or ctx is done. Upload
// failures are logged and never retried.
func (a *Archiver) Run(ctx context.Context, in <-chan events.JobEvent) {
	for {
		select {
		case ev, ok := <-in:
			if !ok {
				return
			}
			if err := a.Archive(ctx, ev); err != nil {
				a.logger.Error("Archiving %s failed: %v", ev.ID, err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Archive uploads the metadata of a finished capture and, when it
// succeeded, its image and thumbnail. Pending events are ignored.
func (a *Archiver) Archive(ctx context.Context, ev events.JobEvent) error {
	switch ev.State {
	case model.StateSuccess:
		for _, kind := range []storage.Kind{storage.KindImage, storage.KindThumbnail} {
			if err := a.uploadFile(ctx, ev.ID, kind); err != nil {
				return err
			}
		}
	case model.StateFailed:
	default:
		return nil
	}

	meta, err := a.source.ReadMeta(ev.ID)
	if err != nil {
		return fmt.Errorf("read meta: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := a.put(ctx, a.Key(ev.ID, storage.MetaFilename(ev.ID)), data, "application/json"); err != nil {
		return err
	}
	a.logger.Debug("Archived %s to s3://%s/%s", ev.ID, a.bucket, a.Key(ev.ID, ""))
	return nil
}

// Key returns the object key of one file of a capture.
func (a *Archiver) Key(id, name string) string {
	return path.Join(a.prefix, id, name)
}

func (a *Archiver) uploadFile(ctx context.Context, id string, kind storage.Kind) error {
	f, err := a.source.Open(id, kind)
	if err != nil {
		return fmt.Errorf("open %s: %w", kind, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", kind, err)
	}

	name := storage.ImageFilename(id)
	if kind == storage.KindThumbnail {
		name = storage.ThumbnailFilename(id)
	}
	return a.put(ctx, a.Key(id, name), data, "image/jpeg")
}

func (a *Archiver) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}
