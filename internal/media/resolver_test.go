package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// fakeBlobStore stages a file on disk so cleanup behavior can be observed.
type fakeBlobStore struct {
	dir     string
	err     error
	fetched int
	staged  string
}

func (f *fakeBlobStore) FetchToFile(ctx context.Context, id string) (string, func(), error) {
	f.fetched++
	if f.err != nil {
		return "", nil, f.err
	}
	path := filepath.Join(f.dir, "staged-"+id)
	if err := os.WriteFile(path, []byte("image-bytes"), 0o600); err != nil {
		return "", nil, err
	}
	f.staged = path
	return path, func() { os.Remove(path) }, nil
}

type fakeUploader struct {
	mediaID string
	err     error
	calls   int
	gotPath string
}

func (f *fakeUploader) UploadMedia(ctx context.Context, path string) (string, error) {
	f.calls++
	f.gotPath = path
	if f.err != nil {
		return "", f.err
	}
	return f.mediaID, nil
}

func stagedFileGone(t *testing.T, path string) {
	t.Helper()
	if path == "" {
		return
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("staged file %s still exists after Resolve", path)
	}
}

func TestResolveNoImage(t *testing.T) {
	blobs := &fakeBlobStore{dir: t.TempDir()}
	uploader := &fakeUploader{}
	r := NewResolver(blobs, uploader)

	if got := r.Resolve(context.Background(), ""); got != "" {
		t.Errorf("expected empty handle, got %q", got)
	}
	if blobs.fetched != 0 || uploader.calls != 0 {
		t.Error("expected no side effects for absent image reference")
	}
}

func TestResolveSuccess(t *testing.T) {
	blobs := &fakeBlobStore{dir: t.TempDir()}
	uploader := &fakeUploader{mediaID: "m-123"}
	r := NewResolver(blobs, uploader)

	got := r.Resolve(context.Background(), "img-1")
	if got != "m-123" {
		t.Errorf("expected m-123, got %q", got)
	}
	if uploader.gotPath != blobs.staged {
		t.Errorf("uploader received %q, staged at %q", uploader.gotPath, blobs.staged)
	}
	stagedFileGone(t, blobs.staged)
}

func TestResolveMissingBlob(t *testing.T) {
	blobs := &fakeBlobStore{dir: t.TempDir(), err: fmt.Errorf("%w: img-9", ErrBlobNotFound)}
	uploader := &fakeUploader{mediaID: "m-123"}
	r := NewResolver(blobs, uploader)

	if got := r.Resolve(context.Background(), "img-9"); got != "" {
		t.Errorf("expected empty handle, got %q", got)
	}
	if blobs.fetched != 1 {
		t.Errorf("expected exactly one fetch attempt, got %d", blobs.fetched)
	}
	if uploader.calls != 0 {
		t.Error("expected no upload for missing blob")
	}
}

func TestResolveUploadFailureCleansUp(t *testing.T) {
	blobs := &fakeBlobStore{dir: t.TempDir()}
	uploader := &fakeUploader{err: errors.New("legacy auth failed")}
	r := NewResolver(blobs, uploader)

	if got := r.Resolve(context.Background(), "img-1"); got != "" {
		t.Errorf("expected empty handle on upload failure, got %q", got)
	}
	stagedFileGone(t, blobs.staged)
}
