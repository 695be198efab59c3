// Package publisher drives the per-part posting loop: bounded retry with
// fixed backoff, threading each part as a reply to the previous one,
// attaching the media handle to the first successful part only, and pacing
// between parts with a jittered human-like delay.
//
// The loop owns the thread state (last published id, unconsumed media
// handle) for exactly one pending post; nothing survives the call.
package publisher

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/thread-publisher/internal/platform"
	"github.com/fpang/thread-publisher/internal/store"
)

const (
	// maxAttempts bounds the create-post retries per part.
	maxAttempts = 3

	// retryWait is the fixed, unjittered delay between attempts of the
	// same part.
	retryWait = 10 * time.Second

	// Pacing delay after each successful part, drawn uniformly from
	// [paceMin, paceMax].
	paceMin = 5 * time.Second
	paceMax = 8 * time.Second
)

// Poster publishes one part. Implemented by *platform.Session.
type Poster interface {
	CreatePost(ctx context.Context, text, inReplyTo string, mediaIDs []string) (*platform.PostResult, error)
}

// HistoryRecorder appends a published part to the deduplication history.
type HistoryRecorder interface {
	RecordPublished(ctx context.Context, part store.PublishedPart) error
}

// Publisher publishes the parts of one pending post as a reply chain.
type Publisher struct {
	poster  Poster
	history HistoryRecorder

	// sleep and pace are injectable so tests can observe delays without
	// waiting them out.
	sleep func(ctx context.Context, d time.Duration) error
	pace  func() time.Duration
}

// New creates a Publisher. history may be nil; recording is best-effort
// either way.
func New(poster Poster, history HistoryRecorder) *Publisher {
	return &Publisher{
		poster:  poster,
		history: history,
		sleep:   sleepContext,
		pace:    paceDelay,
	}
}

// PublishThread posts each part in order, threading every part under the id
// returned for the previous one. mediaHandle, when non-empty, is attached to
// the first part and consumed by its first successful publish; it is never
// attached to any later part, even across retries.
//
// On success the id of the last published part is returned. When a part
// exhausts its attempts the whole post aborts with *ExhaustedError; parts
// already published stay live and are not rolled back.
//
// Note: a retried attempt whose predecessor actually succeeded (e.g. a
// timeout after the write landed) can produce a duplicate live post. That
// ambiguity is accepted; there is no exactly-once guarantee here.
func (p *Publisher) PublishThread(ctx context.Context, parts []string, mediaHandle string) (string, error) {
	var lastID string

	for i, part := range parts {
		published := false
		var lastErr error

		for attempt := 1; attempt <= maxAttempts; attempt++ {
			attachMedia := i == 0 && mediaHandle != ""
			var mediaIDs []string
			if attachMedia {
				mediaIDs = []string{mediaHandle}
			}

			log.Info().
				Int("part", i+1).
				Int("parts", len(parts)).
				Int("attempt", attempt).
				Int("maxAttempts", maxAttempts).
				Bool("media", attachMedia).
				Msg("Posting part")

			result, err := p.poster.CreatePost(ctx, part, lastID, mediaIDs)
			if err == nil {
				lastID = result.ID
				if attachMedia {
					// Consumed-once: never reattached, even if a
					// later part retries.
					mediaHandle = ""
				}
				p.recordPart(ctx, part, result.ID)
				published = true

				delay := p.pace()
				log.Debug().Dur("delay", delay).Msg("Pacing before next part")
				if err := p.sleep(ctx, delay); err != nil {
					return lastID, err
				}
				break
			}

			lastErr = err
			log.Warn().
				Err(err).
				Int("part", i+1).
				Int("attempt", attempt).
				Msg("Post attempt failed")

			if attempt < maxAttempts {
				log.Debug().Dur("wait", retryWait).Msg("Waiting before retry")
				if err := p.sleep(ctx, retryWait); err != nil {
					return lastID, err
				}
			}
		}

		if !published {
			return lastID, &ExhaustedError{Part: i, Attempts: maxAttempts, Err: lastErr}
		}
	}

	return lastID, nil
}

// recordPart appends the published text to the history table. Best-effort:
// a failed write is logged, not escalated, so a history outage cannot undo
// an already-live post.
func (p *Publisher) recordPart(ctx context.Context, text, postID string) {
	if p.history == nil {
		return
	}
	err := p.history.RecordPublished(ctx, store.PublishedPart{Text: text, PostID: postID})
	if err != nil {
		log.Warn().Err(err).Str("postId", postID).Msg("Failed to record published part in history")
	}
}

// paceDelay draws the human-like delay between parts.
func paceDelay() time.Duration {
	return paceMin + rand.N(paceMax-paceMin)
}

// sleepContext sleeps for d or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
