package blob

import (
	"context"
	"fmt"

	gcblob "gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// buckets
	_ "gocloud.dev/blob/memblob"  // mem:// buckets
	"gocloud.dev/gcerrors"
)

// BucketStore serves objects from a Go CDK bucket.
type BucketStore struct {
	bucket *gcblob.Bucket
}

// NewBucketStore wraps an already opened bucket.
func NewBucketStore(bucket *gcblob.Bucket) *BucketStore {
	return &BucketStore{bucket: bucket}
}

// OpenBucket opens the bucket at urlstr (mem://, file:///path, ...).
// When prefix is set every path is resolved relative to it.
func OpenBucket(ctx context.Context, urlstr string, prefix string) (*BucketStore, error) {
	bucket, err := gcblob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, fmt.Errorf("blob: open bucket %q: %w", urlstr, err)
	}

	if prefix != "" {
		bucket = gcblob.PrefixedBucket(bucket, prefix)
	}

	return NewBucketStore(bucket), nil
}

// Download reads the whole object at path.
func (s *BucketStore) Download(ctx context.Context, path string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, path)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("blob: download %s: %w", path, err)
	}
	return data, nil
}

// Bucket exposes the underlying bucket, mostly for seeding content.
func (s *BucketStore) Bucket() *gcblob.Bucket {
	return s.bucket
}

// Close releases the bucket.
func (s *BucketStore) Close() error {
	return s.bucket.Close()
}
