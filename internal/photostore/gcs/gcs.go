// Package gcs serves obra photos from a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/vbonduro/obrafix/internal/photostore"
)

const defaultPublicHost = "https://storage.googleapis.com"

type Store struct {
	client     *storage.Client
	bucket     *storage.BucketHandle
	publicBase string
}

// New creates a storage client for bucket. publicBase overrides the URL
// prefix photos are published under; when empty the bucket's
// storage.googleapis.com address is used.
func New(ctx context.Context, bucket, publicBase string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name must be provided to create a storage client")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &Store{
		client:     client,
		bucket:     client.Bucket(bucket),
		publicBase: PublicBase(bucket, publicBase),
	}, nil
}

// PublicBase returns the URL prefix for objects in bucket.
func PublicBase(bucket, override string) string {
	if override != "" {
		return strings.TrimRight(override, "/")
	}
	return defaultPublicHost + "/" + bucket
}

func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string, opts photostore.ListOptions) ([]photostore.Object, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})

	objs := make([]photostore.Object, 0)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %q: %w", prefix, err)
		}
		// Console-created folders show up as zero-byte objects ending in "/".
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		objs = append(objs, photostore.Object{
			Name:        attrs.Name,
			Size:        attrs.Size,
			ContentType: attrs.ContentType,
			Created:     attrs.Created,
		})
	}
	return photostore.Apply(objs, opts), nil
}

func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, string, error) {
	r, err := s.bucket.Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, "", fmt.Errorf("%w: %s", photostore.ErrObjectNotFound, name)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read object %s: %w", name, err)
	}
	return r, r.Attrs.ContentType, nil
}

func (s *Store) PublicURL(name string) string {
	return photostore.JoinURL(s.publicBase, name)
}

func (s *Store) ObjectName(publicURL string) (string, bool) {
	return photostore.TrimURL(s.publicBase, publicURL)
}
