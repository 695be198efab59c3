package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fpang/thread-publisher/internal/publisher"
	"github.com/fpang/thread-publisher/internal/store"
)

// fakeQueue implements store.QueueStore in memory.
type fakeQueue struct {
	next      *store.PendingPost
	fetchErr  error
	published map[string]bool // dedup history
	existsErr error

	marked  []string
	markErr error

	recorded []store.PublishedPart
}

func (f *fakeQueue) FetchNextPending(ctx context.Context) (*store.PendingPost, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.next, nil
}

func (f *fakeQueue) ExistsPublishedText(ctx context.Context, text string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.published[text], nil
}

func (f *fakeQueue) MarkPosted(ctx context.Context, postID string) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, postID)
	return nil
}

func (f *fakeQueue) RecordPublished(ctx context.Context, part store.PublishedPart) error {
	f.recorded = append(f.recorded, part)
	return nil
}

type fakeSession struct {
	verifyErr error
	verified  int
	closed    int
}

func (f *fakeSession) Verify(ctx context.Context) error {
	f.verified++
	return f.verifyErr
}

func (f *fakeSession) Close() { f.closed++ }

type fakeResolver struct {
	handle string
	gotID  string
	calls  int
}

func (f *fakeResolver) Resolve(ctx context.Context, imageID string) string {
	f.calls++
	f.gotID = imageID
	return f.handle
}

type fakeThreadPublisher struct {
	threadID  string
	err       error
	calls     int
	gotParts  []string
	gotHandle string
}

func (f *fakeThreadPublisher) PublishThread(ctx context.Context, parts []string, mediaHandle string) (string, error) {
	f.calls++
	f.gotParts = parts
	f.gotHandle = mediaHandle
	if f.err != nil {
		return "", f.err
	}
	return f.threadID, nil
}

func TestRunNoPending(t *testing.T) {
	queue := &fakeQueue{}
	session := &fakeSession{}
	pub := &fakeThreadPublisher{}
	p := New(queue, session, nil, pub)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeNoPending {
		t.Errorf("expected no_pending, got %s", result.Outcome)
	}
	if pub.calls != 0 {
		t.Error("expected no publish calls")
	}
	if session.verified != 1 || session.closed != 1 {
		t.Errorf("expected session verified and closed once, got %d/%d", session.verified, session.closed)
	}
}

func TestRunDedupSkipsWholePost(t *testing.T) {
	queue := &fakeQueue{
		next: &store.PendingPost{ID: "p-1", Parts: []string{"fresh", "X"}},
		published: map[string]bool{
			"X": true,
		},
	}
	session := &fakeSession{}
	pub := &fakeThreadPublisher{}
	p := New(queue, session, nil, pub)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeSkipped {
		t.Errorf("expected skipped, got %s", result.Outcome)
	}
	if !strings.Contains(result.SkipReason, "part 2") {
		t.Errorf("skip reason should name the matched part, got %q", result.SkipReason)
	}
	if pub.calls != 0 {
		t.Error("dedup match must cause zero create-post calls")
	}
	if len(queue.marked) != 1 || queue.marked[0] != "p-1" {
		t.Errorf("expected post marked posted, got %v", queue.marked)
	}
	if session.closed != 1 {
		t.Error("session must be released")
	}
}

func TestRunPublishesAndMarks(t *testing.T) {
	queue := &fakeQueue{
		next: &store.PendingPost{ID: "p-1", Parts: []string{"A", "B"}, ImageID: "img-1"},
	}
	session := &fakeSession{}
	resolver := &fakeResolver{handle: "m-9"}
	pub := &fakeThreadPublisher{threadID: "id-2"}
	p := New(queue, session, resolver, pub)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomePublished {
		t.Errorf("expected published, got %s", result.Outcome)
	}
	if result.PostID != "p-1" || result.ThreadID != "id-2" || result.PartsPublished != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
	if resolver.gotID != "img-1" {
		t.Errorf("resolver got image id %q", resolver.gotID)
	}
	if pub.gotHandle != "m-9" {
		t.Errorf("publisher got media handle %q", pub.gotHandle)
	}
	if len(queue.marked) != 1 {
		t.Errorf("expected post marked exactly once, got %v", queue.marked)
	}
}

func TestRunTextOnlyWithoutResolver(t *testing.T) {
	queue := &fakeQueue{
		next: &store.PendingPost{ID: "p-1", Parts: []string{"A"}, ImageID: "img-1"},
	}
	pub := &fakeThreadPublisher{threadID: "id-1"}
	p := New(queue, &fakeSession{}, nil, pub)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomePublished {
		t.Errorf("expected published, got %s", result.Outcome)
	}
	if pub.gotHandle != "" {
		t.Errorf("expected empty media handle, got %q", pub.gotHandle)
	}
}

func TestRunPublishFailureLeavesPostUnmarked(t *testing.T) {
	exhausted := &publisher.ExhaustedError{Part: 1, Attempts: 3, Err: errors.New("rate limited")}
	queue := &fakeQueue{
		next: &store.PendingPost{ID: "p-1", Parts: []string{"A", "B"}},
	}
	session := &fakeSession{}
	pub := &fakeThreadPublisher{err: exhausted}
	p := New(queue, session, nil, pub)

	_, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var e *publisher.ExhaustedError
	if !errors.As(err, &e) {
		t.Errorf("expected wrapped *ExhaustedError, got %v", err)
	}
	if len(queue.marked) != 0 {
		t.Error("failed post must not be marked posted")
	}
	if session.closed != 1 {
		t.Error("session must be released on failure")
	}
}

func TestRunAuthFailureSkipsStore(t *testing.T) {
	queue := &fakeQueue{fetchErr: errors.New("store should not be touched")}
	session := &fakeSession{verifyErr: errors.New("bad credentials")}
	p := New(queue, session, nil, &fakeThreadPublisher{})

	_, err := p.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "bad credentials") {
		t.Fatalf("expected verify error, got %v", err)
	}
	if session.closed != 1 {
		t.Error("session must be released even when verify fails")
	}
}

func TestRunStoreUnavailable(t *testing.T) {
	storeErr := &store.UnavailableError{Op: "fetch next pending", Err: errors.New("connection refused")}
	queue := &fakeQueue{fetchErr: storeErr}
	p := New(queue, &fakeSession{}, nil, &fakeThreadPublisher{})

	_, err := p.Run(context.Background())
	var unavailable *store.UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected *store.UnavailableError, got %v", err)
	}
}

func TestRunEmptyPartsRetired(t *testing.T) {
	queue := &fakeQueue{next: &store.PendingPost{ID: "p-1"}}
	pub := &fakeThreadPublisher{}
	p := New(queue, &fakeSession{}, nil, pub)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeSkipped {
		t.Errorf("expected skipped, got %s", result.Outcome)
	}
	if pub.calls != 0 {
		t.Error("expected no publish calls for empty post")
	}
	if len(queue.marked) != 1 {
		t.Error("empty post should be retired")
	}
}
