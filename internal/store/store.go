// Package store provides the content store client for the publishing queue.
// It wraps two DynamoDB tables: the queue table holding pending multi-part
// posts, and the history table holding every part text that has ever been
// published (the deduplication index).
//
// The queue table is keyed by post id and carries a sparse GSI
// (pending-by-created) whose hash key is only present on unposted items, so
// the next-pending lookup is a single Query with Limit=1 rather than a scan.
// The history table is keyed by the SHA-256 of the exact part text;
// the stored text is compared byte-for-byte on read, so the hash is only a
// key, never the matching criterion.
package store

import (
	"context"
	"fmt"
)

// QueueStore defines the persistence interface for the publishing pipeline.
// Each method is safe for concurrent use. Get-style methods return (nil, nil)
// when the requested record does not exist.
//
// Connectivity or query failures surface as *UnavailableError and are never
// retried at this layer; the orchestrator aborts the run instead.
type QueueStore interface {
	// FetchNextPending returns the most recently created post that has not
	// been posted yet, or nil if the queue is empty.
	FetchNextPending(ctx context.Context) (*PendingPost, error)

	// ExistsPublishedText reports whether text exactly matches a part that
	// was published before.
	ExistsPublishedText(ctx context.Context, text string) (bool, error)

	// MarkPosted flags the post as terminally handled. Idempotent; once set
	// the post is never selected again.
	MarkPosted(ctx context.Context, postID string) error

	// RecordPublished appends a successfully published part to the history
	// table. Append-only; existing entries are overwritten in place (same
	// text, same key), never deleted.
	RecordPublished(ctx context.Context, part PublishedPart) error
}

// PendingPost is one queued unit of content: an ordered sequence of text
// segments published as a reply chain, with an optional image attached to
// the first segment.
type PendingPost struct {
	ID        string   `json:"id" dynamodbav:"-"`
	Parts     []string `json:"parts" dynamodbav:"parts"`
	Posted    bool     `json:"posted" dynamodbav:"posted"`
	CreatedAt int64    `json:"createdAt" dynamodbav:"createdAt"`
	ImageID   string   `json:"imageId,omitempty" dynamodbav:"imageId,omitempty"`
}

// PublishedPart is an immutable record of text that has been published,
// used purely as a deduplication index.
type PublishedPart struct {
	Text        string `json:"text" dynamodbav:"text"`
	PostID      string `json:"postId,omitempty" dynamodbav:"postId,omitempty"`
	PublishedAt int64  `json:"publishedAt" dynamodbav:"publishedAt"`
}

// UnavailableError indicates the content store could not be reached or a
// query failed. It aborts the run; there is no retry at the store layer.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("content store unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
