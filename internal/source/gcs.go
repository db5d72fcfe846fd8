package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSSource reads uploads from a Cloud Storage bucket.
type GCSSource struct {
	client *storage.Client
	Bucket string

	// Prefix is prepended to every listing, e.g. "ntd_uploads/".
	Prefix string
}

// NewGCS creates a client for bucket. Application default credentials are
// used when credentialsFile is empty.
func NewGCS(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSSource, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSSource{client: client, Bucket: bucket, Prefix: prefix}, nil
}

// List returns the object names under Prefix+prefix.
func (s *GCSSource) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.Bucket(s.Bucket).Objects(ctx, &storage.Query{Prefix: s.Prefix + prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", s.Bucket, s.Prefix+prefix, err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// Open opens an object by its full name, as returned by List.
func (s *GCSSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.Bucket).Object(name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", s.Bucket, name, err)
	}
	return r, nil
}

// Close closes the storage client.
func (s *GCSSource) Close() error {
	return s.client.Close()
}
