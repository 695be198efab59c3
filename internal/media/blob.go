package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// ErrBlobNotFound indicates the image id does not resolve to a stored object.
var ErrBlobNotFound = errors.New("blob not found")

// S3BlobStore implements BlobStore over a single S3 bucket, keyed by image id.
type S3BlobStore struct {
	client *s3.Client
	bucket string
}

// Compile-time interface check.
var _ BlobStore = (*S3BlobStore)(nil)

// NewS3BlobStore creates a blob store bound to one bucket.
// The client should be initialized from the shared AWS config.
func NewS3BlobStore(client *s3.Client, bucket string) *S3BlobStore {
	return &S3BlobStore{client: client, bucket: bucket}
}

// FetchToFile downloads the object to a new temporary file named after the
// image id and returns the file path plus a cleanup function that removes it.
// The object's existence is checked before the read; an absent id returns
// ErrBlobNotFound rather than a transport error.
func (b *S3BlobStore) FetchToFile(ctx context.Context, id string) (string, func(), error) {
	if _, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &b.bucket, Key: &id,
	}); err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return "", nil, fmt.Errorf("%w: %s", ErrBlobNotFound, id)
		}
		return "", nil, fmt.Errorf("S3 HeadObject: %w", err)
	}

	log.Debug().Str("bucket", b.bucket).Str("key", id).Msg("Downloading image from S3")
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.bucket, Key: &id,
	})
	if err != nil {
		return "", nil, fmt.Errorf("S3 GetObject: %w", err)
	}
	defer result.Body.Close()

	tmpFile, err := os.CreateTemp("", "media-stage-"+filepath.Base(id)+"-*"+filepath.Ext(id))
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmpFile, result.Body); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return "", nil, fmt.Errorf("stage blob: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpFile.Name())
		return "", nil, fmt.Errorf("close staged file: %w", err)
	}

	cleanup := func() { os.Remove(tmpFile.Name()) }
	return tmpFile.Name(), cleanup, nil
}
