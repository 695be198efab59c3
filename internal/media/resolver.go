// Package media resolves an optional image reference into a platform media
// handle: fetch the blob, stage it to a temporary file, upload it through the
// legacy media endpoint, and always remove the staged file afterwards.
//
// Resolution is best-effort. A missing blob or a failed upload degrades the
// post to text-only; it never fails the run.
package media

import (
	"context"

	"github.com/rs/zerolog/log"
)

// BlobStore retrieves binary content by id and stages it locally.
type BlobStore interface {
	// FetchToFile downloads the blob to a temporary file and returns its
	// path plus a cleanup function that removes it.
	FetchToFile(ctx context.Context, id string) (path string, cleanup func(), err error)
}

// Uploader pushes staged bytes to the platform's media endpoint.
type Uploader interface {
	UploadMedia(ctx context.Context, path string) (string, error)
}

// Resolver turns an image reference into an attachable media handle.
type Resolver struct {
	blobs    BlobStore
	uploader Uploader
}

// NewResolver creates a Resolver over the given blob store and uploader.
func NewResolver(blobs BlobStore, uploader Uploader) *Resolver {
	return &Resolver{blobs: blobs, uploader: uploader}
}

// Resolve returns the media handle for imageID, or "" when there is no image
// or it could not be resolved. The staged file is deleted on every path,
// including upload failure. Blob retrieval is attempted once, never retried.
func (r *Resolver) Resolve(ctx context.Context, imageID string) string {
	if imageID == "" {
		return ""
	}

	path, cleanup, err := r.blobs.FetchToFile(ctx, imageID)
	if err != nil {
		log.Warn().Err(err).Str("imageId", imageID).Msg("Image blob not resolvable — posting text-only")
		return ""
	}
	defer cleanup()

	mediaID, err := r.uploader.UploadMedia(ctx, path)
	if err != nil {
		log.Warn().Err(err).Str("imageId", imageID).Msg("Media upload failed — posting text-only")
		return ""
	}

	log.Info().Str("imageId", imageID).Str("mediaId", mediaID).Msg("Image resolved to media handle")
	return mediaID
}
