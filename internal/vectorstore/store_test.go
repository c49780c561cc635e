package vectorstore

import (
	"math"
	"testing"
	"time"
)

func TestEmbeddingRoundTrip(t *testing.T) {
	v := []float32{1.5, -2.25, 0, 3.14159, float32(math.Inf(1)), float32(math.Inf(-1))}
	got := BytesToEmbedding(EmbeddingToBytes(v))
	if len(got) != len(v) {
		t.Fatalf("length mismatch: got %d want %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Fatalf("index %d: got %v want %v", i, got[i], v[i])
		}
	}
}

func TestEmbeddingEncodingIsLengthPrefixFree(t *testing.T) {
	v := []float32{1, 2, 3}
	b := EmbeddingToBytes(v)
	if len(b) != 12 {
		t.Fatalf("expected exactly 4 bytes per float with no prefix, got %d bytes", len(b))
	}
}

func TestUpsertAndGet(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	c := Chunk{
		ID: "c1", FilePath: "/ws/main.go", Content: "func main() {}", ChunkType: "function",
		StartLine: 1, EndLine: 3, Language: "go", Embedding: []float32{0.1, 0.2}, UpdatedAt: time.Unix(1000, 0),
	}
	if err := store.Upsert(c); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := store.Get("c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FilePath != c.FilePath || len(got.Embedding) != 2 {
		t.Fatalf("unexpected chunk: %+v", got)
	}
}

func TestUpsertReplacesExistingID(t *testing.T) {
	store, _ := Open(":memory:")
	defer store.Close()
	store.Upsert(Chunk{ID: "c1", FilePath: "/a.go", Content: "old", ChunkType: "function", Language: "go", UpdatedAt: time.Unix(1, 0)})
	store.Upsert(Chunk{ID: "c1", FilePath: "/a.go", Content: "new", ChunkType: "function", Language: "go", UpdatedAt: time.Unix(2, 0)})
	got, err := store.Get("c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != "new" {
		t.Fatalf("expected replaced content, got %q", got.Content)
	}
}

func TestByFilePathOrdersByStartLine(t *testing.T) {
	store, _ := Open(":memory:")
	defer store.Close()
	store.Upsert(Chunk{ID: "c2", FilePath: "/a.go", ChunkType: "function", Language: "go", StartLine: 20, UpdatedAt: time.Unix(1, 0)})
	store.Upsert(Chunk{ID: "c1", FilePath: "/a.go", ChunkType: "function", Language: "go", StartLine: 5, UpdatedAt: time.Unix(1, 0)})
	chunks, err := store.ByFilePath("/a.go")
	if err != nil {
		t.Fatalf("ByFilePath: %v", err)
	}
	if len(chunks) != 2 || chunks[0].ID != "c1" {
		t.Fatalf("unexpected order: %+v", chunks)
	}
}

func TestDeleteByFilePath(t *testing.T) {
	store, _ := Open(":memory:")
	defer store.Close()
	store.Upsert(Chunk{ID: "c1", FilePath: "/a.go", ChunkType: "function", Language: "go", UpdatedAt: time.Unix(1, 0)})
	if err := store.DeleteByFilePath("/a.go"); err != nil {
		t.Fatalf("DeleteByFilePath: %v", err)
	}
	chunks, _ := store.ByFilePath("/a.go")
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks after delete, got %d", len(chunks))
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store, _ := Open(":memory:")
	defer store.Close()
	if _, err := store.Get("missing"); err == nil {
		t.Fatal("expected error for missing chunk")
	}
}
