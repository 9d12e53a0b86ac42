package handler

import (
	"testing"

	"github.com/google/uuid"
)

func TestStreamRegistrySecondConnectionEvictsFirst(t *testing.T) {
	reg := newStreamRegistry()
	key := streamKey(uuid.New(), 7)

	var closed []string
	first := &attemptStream{shutdown: func() { closed = append(closed, "first") }}
	if prev := reg.register(key, first); prev != nil {
		t.Fatalf("fresh key returned a displaced stream: %v", prev)
	}

	second := &attemptStream{shutdown: func() { closed = append(closed, "second") }}
	prev := reg.register(key, second)
	if prev != first {
		t.Fatal("second connection did not displace the first")
	}

	prev.close()
	prev.close() // idempotent
	if len(closed) != 1 || closed[0] != "first" {
		t.Errorf("closed = %v, want exactly one shutdown of the first stream", closed)
	}
}

func TestStreamRegistryStaleReleaseKeepsNewcomer(t *testing.T) {
	reg := newStreamRegistry()
	key := streamKey(uuid.New(), 7)

	first := &attemptStream{shutdown: func() {}}
	reg.register(key, first)
	second := &attemptStream{shutdown: func() {}}
	reg.register(key, second)

	// The displaced connection unwinds and releases after its successor
	// registered. The live stream must survive that.
	reg.release(key, first)

	third := &attemptStream{shutdown: func() {}}
	if prev := reg.register(key, third); prev != second {
		t.Error("stale release removed the live stream")
	}
}

func TestStreamRegistryAttemptsAreIndependent(t *testing.T) {
	reg := newStreamRegistry()
	examID := uuid.New()

	a := &attemptStream{shutdown: func() {}}
	b := &attemptStream{shutdown: func() {}}
	if prev := reg.register(streamKey(examID, 1), a); prev != nil {
		t.Fatal("unexpected displacement for first student")
	}
	if prev := reg.register(streamKey(examID, 2), b); prev != nil {
		t.Error("different students on one exam displaced each other")
	}
}
