// Package pipeline composes the content store, deduplication guard, media
// resolver, and publisher into one end-to-end run: acquire session, fetch
// candidate, dedup check, resolve media, publish parts, mark done, release
// session.
//
// One run handles at most one pending post. The caller is assumed to be the
// only active run (single-flight); nothing here locks the fetch/mark
// sequence against a concurrent run.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/thread-publisher/internal/store"
)

// Outcome tags how a run ended without resorting to errors for expected
// conditions.
type Outcome string

const (
	// OutcomePublished: all parts were published and the post marked done.
	OutcomePublished Outcome = "published"

	// OutcomeSkipped: the dedup guard matched; the post was marked done
	// without publishing anything.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeNoPending: the queue was empty; the run is a successful no-op.
	OutcomeNoPending Outcome = "no_pending"
)

// Result describes a completed run. Only meaningful when Run returned a nil
// error.
type Result struct {
	Outcome        Outcome
	PostID         string // queue record id
	ThreadID       string // platform id of the last published part
	PartsPublished int
	SkipReason     string
}

// Session is the authenticated platform session scoped to this run.
type Session interface {
	Verify(ctx context.Context) error
	Close()
}

// MediaResolver resolves an optional image reference to a media handle,
// returning "" when the post should go out text-only.
type MediaResolver interface {
	Resolve(ctx context.Context, imageID string) string
}

// ThreadPublisher publishes the ordered parts as a reply chain.
type ThreadPublisher interface {
	PublishThread(ctx context.Context, parts []string, mediaHandle string) (string, error)
}

// Pipeline is one wired job run. Construct per invocation; it owns no
// state beyond its collaborators.
type Pipeline struct {
	queue     store.QueueStore
	session   Session
	media     MediaResolver
	publisher ThreadPublisher
}

// New assembles a Pipeline. media may be nil when no blob store is
// configured; posts then always go out text-only.
func New(queue store.QueueStore, session Session, media MediaResolver, publisher ThreadPublisher) *Pipeline {
	return &Pipeline{
		queue:     queue,
		session:   session,
		media:     media,
		publisher: publisher,
	}
}

// Run executes one end-to-end run. Fatal conditions (auth failure, store
// unavailable, publish exhausted) come back as errors; expected conditions
// are Result outcomes. Session teardown is guaranteed on every path.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	defer p.session.Close()

	// Fail fast before touching the store.
	if err := p.session.Verify(ctx); err != nil {
		return Result{}, err
	}

	post, err := p.queue.FetchNextPending(ctx)
	if err != nil {
		return Result{}, err
	}
	if post == nil {
		log.Info().Msg("No pending posts, nothing to do")
		return Result{Outcome: OutcomeNoPending}, nil
	}

	log.Info().
		Str("postId", post.ID).
		Int("parts", len(post.Parts)).
		Bool("hasImage", post.ImageID != "").
		Msg("Handling pending post")

	if len(post.Parts) == 0 {
		// Nothing publishable; retire the record so it stops blocking the queue.
		if err := p.queue.MarkPosted(ctx, post.ID); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeSkipped, PostID: post.ID, SkipReason: "post has no parts"}, nil
	}

	matchIdx, matched, err := p.findPublishedPart(ctx, post.Parts)
	if err != nil {
		return Result{}, err
	}
	if matched {
		// Whole-post skip: the post is either wholly new or entirely
		// dropped, never partially re-posted.
		if err := p.queue.MarkPosted(ctx, post.ID); err != nil {
			return Result{}, err
		}
		return Result{
			Outcome:    OutcomeSkipped,
			PostID:     post.ID,
			SkipReason: fmt.Sprintf("part %d already published", matchIdx+1),
		}, nil
	}

	mediaHandle := ""
	if p.media != nil && post.ImageID != "" {
		mediaHandle = p.media.Resolve(ctx, post.ImageID)
	}

	threadID, err := p.publisher.PublishThread(ctx, post.Parts, mediaHandle)
	if err != nil {
		// The post stays unmarked. Parts already live are covered by the
		// history records the publisher wrote, so a re-run dedup-skips
		// instead of duplicating them.
		return Result{}, fmt.Errorf("publish post %s: %w", post.ID, err)
	}

	if err := p.queue.MarkPosted(ctx, post.ID); err != nil {
		return Result{}, err
	}

	return Result{
		Outcome:        OutcomePublished,
		PostID:         post.ID,
		ThreadID:       threadID,
		PartsPublished: len(post.Parts),
	}, nil
}
