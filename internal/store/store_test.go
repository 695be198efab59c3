package store

import (
	"errors"
	"testing"
)

func TestTextHashDeterministic(t *testing.T) {
	a := textHash("hello world")
	b := textHash("hello world")
	if a != b {
		t.Fatalf("hash not stable: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if a == textHash("hello world ") {
		t.Fatal("trailing whitespace should produce a different hash")
	}
}

func TestUnavailableErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &UnavailableError{Op: "query pending", Err: inner}
	if !errors.Is(err, inner) {
		t.Fatal("expected UnavailableError to unwrap to the inner error")
	}
	if err.Error() == "" {
		t.Fatal("expected a non-empty error message")
	}
}
