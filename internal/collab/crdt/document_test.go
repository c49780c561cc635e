package crdt

import (
	"encoding/json"
	"testing"
)

func unmarshalOps(data []byte, ops *[]Op) error {
	return json.Unmarshal(data, ops)
}

func TestInsertAndGetText(t *testing.T) {
	d := NewDocument("f1", 1)
	d.Insert(0, "hello")
	if got := d.GetText(); got != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestInsertInMiddle(t *testing.T) {
	d := NewDocument("f1", 1)
	d.Insert(0, "helo")
	d.Insert(3, "l")
	if got := d.GetText(); got != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestDeleteRemovesVisibleRunes(t *testing.T) {
	d := NewDocument("f1", 1)
	d.Insert(0, "hello")
	d.Delete(1, 3)
	if got := d.GetText(); got != "ho" {
		t.Fatalf("got %q", got)
	}
}

func TestApplyUpdateRoundTrip(t *testing.T) {
	a := NewDocument("f1", 1)
	a.Insert(0, "hello")

	b := NewDocument("f1", 2)
	state, err := a.EncodeState()
	if err != nil {
		t.Fatalf("EncodeState: %v", err)
	}
	if err := b.ApplyUpdate(state); err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	if got := b.GetText(); got != "hello" {
		t.Fatalf("got %q", got)
	}
}

// TestConvergenceUnderOutOfOrderDelivery is the spec's core invariant:
// two replicas that each make independent concurrent edits and then
// apply each other's updates (in either order) end up byte-identical.
func TestConvergenceUnderOutOfOrderDelivery(t *testing.T) {
	a := NewDocument("f1", 1)
	a.Insert(0, "hello world")

	b := NewDocument("f1", 2)
	state, _ := a.EncodeState()
	_ = b.ApplyUpdate(state)

	// Concurrent edits: A inserts at the start, B inserts at the end.
	a.Insert(0, ">> ")
	b.Insert(len(b.GetText()), " <<")

	svA, _ := a.EncodeStateVector()
	svB, _ := b.EncodeStateVector()

	diffFromBForA, _ := b.EncodeDiff(svA)
	diffFromAForB, _ := a.EncodeDiff(svB)

	if err := a.ApplyUpdate(diffFromBForA); err != nil {
		t.Fatalf("a.ApplyUpdate: %v", err)
	}
	if err := b.ApplyUpdate(diffFromAForB); err != nil {
		t.Fatalf("b.ApplyUpdate: %v", err)
	}

	if a.GetText() != b.GetText() {
		t.Fatalf("replicas diverged: a=%q b=%q", a.GetText(), b.GetText())
	}
}

// TestConvergenceWithConcurrentInsertsAtSameOffset reproduces the
// spec's own example: two replicas starting from an empty document
// each insert a multi-character string at offset 0, concurrently, and
// then exchange updates. Unlike the other convergence tests, both
// inserts compete for the exact same position, which is what exposes
// order-dependent integration bugs.
func TestConvergenceWithConcurrentInsertsAtSameOffset(t *testing.T) {
	a := NewDocument("f1", 1)
	a.Insert(0, "Hello")

	b := NewDocument("f1", 2)
	b.Insert(0, "World")

	svA, _ := a.EncodeStateVector()
	svB, _ := b.EncodeStateVector()

	diffFromBForA, _ := b.EncodeDiff(svA)
	diffFromAForB, _ := a.EncodeDiff(svB)

	if err := a.ApplyUpdate(diffFromBForA); err != nil {
		t.Fatalf("a.ApplyUpdate: %v", err)
	}
	if err := b.ApplyUpdate(diffFromAForB); err != nil {
		t.Fatalf("b.ApplyUpdate: %v", err)
	}

	if a.GetText() != b.GetText() {
		t.Fatalf("replicas diverged: a=%q b=%q", a.GetText(), b.GetText())
	}
	if len(a.GetText()) != len("HelloWorld") {
		t.Fatalf("unexpected converged length: %q", a.GetText())
	}
}

func TestConvergenceWithConcurrentInsertDeletePair(t *testing.T) {
	a := NewDocument("f1", 1)
	a.Insert(0, "hello")
	b := NewDocument("f1", 2)
	state, _ := a.EncodeState()
	_ = b.ApplyUpdate(state)

	a.Delete(0, 1) // delete 'h'
	b.Insert(5, "!")

	svA, _ := a.EncodeStateVector()
	svB, _ := b.EncodeStateVector()
	diffForA, _ := b.EncodeDiff(svA)
	diffForB, _ := a.EncodeDiff(svB)

	_ = a.ApplyUpdate(diffForA)
	_ = b.ApplyUpdate(diffForB)

	if a.GetText() != b.GetText() {
		t.Fatalf("replicas diverged: a=%q b=%q", a.GetText(), b.GetText())
	}
	if a.GetText() != "ello!" {
		t.Fatalf("unexpected converged text: %q", a.GetText())
	}
}

func TestApplyingSameUpdateTwiceIsIdempotent(t *testing.T) {
	a := NewDocument("f1", 1)
	a.Insert(0, "abc")
	b := NewDocument("f1", 2)
	state, _ := a.EncodeState()
	_ = b.ApplyUpdate(state)
	_ = b.ApplyUpdate(state)
	if got := b.GetText(); got != "abc" {
		t.Fatalf("expected idempotent apply, got %q", got)
	}
}

func TestEncodeDiffOnlyIncludesUnseenOps(t *testing.T) {
	a := NewDocument("f1", 1)
	a.Insert(0, "ab")
	sv, _ := a.EncodeStateVector()

	a.Insert(2, "c")
	diff, _ := a.EncodeDiff(sv)

	var ops []Op
	if err := unmarshalOps(diff, &ops); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("expected only the op inserted after the state vector was taken, got %d ops", len(ops))
	}
}

func TestEncodeDiffFreshReplicaUsesFullState(t *testing.T) {
	a := NewDocument("f1", 1)
	a.Insert(0, "xyz")
	full, _ := a.EncodeState()
	diff, _ := a.EncodeDiff(nil)
	if len(full) == 0 || len(diff) == 0 {
		t.Fatal("expected non-empty encodings")
	}
}
