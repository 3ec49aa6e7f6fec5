// Package blob stores article payloads, snippets and images in S3-compatible
// object storage. Containers map to buckets.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/medwatch/contentprocessor/internal/contentprocessor/configuration"
)

// Store is the writer's view of blob storage.
type Store interface {
	Connect(ctx context.Context, container string) error
	WriteText(ctx context.Context, container string, key string, text string) (string, error)
	WriteImage(ctx context.Context, container string, key string, img image.Image) (string, error)
}

type MinioStore struct {
	client *minio.Client
	cfg    configuration.BlobConfig
}

func NewMinioStore(cfg configuration.BlobConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyId, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating blob storage client")
	}
	return &MinioStore{client: client, cfg: cfg}, nil
}

// Connect ensures the container exists, creating it when missing. Transient
// failures are retried; called once per container at startup.
func (s *MinioStore) Connect(ctx context.Context, container string) error {
	err := retry.Do(
		func() error {
			exists, err := s.client.BucketExists(ctx, container)
			if err != nil {
				return err
			}
			if exists {
				return nil
			}
			return s.client.MakeBucket(ctx, container, minio.MakeBucketOptions{Region: s.cfg.Region})
		},
		retry.Attempts(4),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	return errors.Wrapf(err, "connecting to blob container %s", container)
}

// WriteText stores text under key and returns the blob url.
func (s *MinioStore) WriteText(ctx context.Context, container string, key string, text string) (string, error) {
	reader := strings.NewReader(text)
	_, err := s.client.PutObject(ctx, container, key, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "application/xml",
	})
	if err != nil {
		return "", errors.Wrapf(err, "writing text blob %s/%s", container, key)
	}
	return s.url(container, key), nil
}

// WriteImage encodes the image as jpeg, stores it under key and returns the
// blob url.
func (s *MinioStore) WriteImage(ctx context.Context, container string, key string, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return "", errors.Wrapf(err, "encoding image blob %s/%s", container, key)
	}
	_, err := s.client.PutObject(ctx, container, key, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	if err != nil {
		return "", errors.Wrapf(err, "writing image blob %s/%s", container, key)
	}
	return s.url(container, key), nil
}

func (s *MinioStore) url(container string, key string) string {
	scheme := "http"
	if s.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.cfg.Endpoint, container, key)
}
