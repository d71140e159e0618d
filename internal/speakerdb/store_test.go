package speakerdb

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "db", "speakers.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveListRemove(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if _, err := store.Save(ctx, "Bob", []float64{0, 3, 4}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Save(ctx, "alice", []float64{1, 0, 0}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	speakers, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(speakers) != 2 || speakers[0].Name != "alice" || speakers[1].Name != "Bob" {
		t.Fatalf("unexpected speakers %+v", speakers)
	}
	bob := speakers[1].Embedding
	if math.Abs(bob[1]-0.6) > 1e-6 || math.Abs(bob[2]-0.8) > 1e-6 {
		t.Fatalf("embedding not normalized: %v", bob)
	}
	if speakers[0].CreatedAt.IsZero() {
		t.Fatal("created_at not recorded")
	}

	if err := store.Remove(ctx, "BOB"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove(ctx, "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveBlendsExistingSpeaker(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	if _, err := store.Save(ctx, "Alice", []float64{1, 0}); err != nil {
		t.Fatal(err)
	}
	sp, err := store.Save(ctx, "ALICE", []float64{0, 1})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	want := 1 / math.Sqrt2
	if math.Abs(sp.Embedding[0]-want) > 1e-6 || math.Abs(sp.Embedding[1]-want) > 1e-6 {
		t.Fatalf("blended embedding = %v", sp.Embedding)
	}
	speakers, _ := store.List(ctx)
	if len(speakers) != 1 || speakers[0].Name != "Alice" {
		t.Fatalf("expected a single Alice, got %+v", speakers)
	}
	if _, err := store.Save(ctx, "Alice", []float64{1, 0, 0}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestSaveRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	if _, err := store.Save(ctx, " ", []float64{1}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if _, err := store.Save(ctx, "x", []float64{0, 0}); err == nil {
		t.Fatal("expected error for zero embedding")
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "speakers.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(ctx, "Carol", []float64{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	speakers, err := store.List(ctx)
	if err != nil || len(speakers) != 1 {
		t.Fatalf("List after reopen = %+v, %v", speakers, err)
	}
}

func TestMatchAndIdentify(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	_, _ = store.Save(ctx, "Alice", []float64{1, 0, 0})
	_, _ = store.Save(ctx, "Bob", []float64{0, 1, 0})

	m, ok, err := store.Match(ctx, []float64{0.9, 0.1, 0}, 0.75)
	if err != nil || !ok || m.Name != "Alice" {
		t.Fatalf("Match = %+v %v %v", m, ok, err)
	}
	if _, ok, _ := store.Match(ctx, []float64{0, 0, 1}, 0.75); ok {
		t.Fatal("orthogonal embedding must not match")
	}

	names, err := store.Identify(ctx, map[string][]float64{
		"SPEAKER_00": {0.8, 0.2, 0},
		"SPEAKER_01": {0.99, 0.01, 0},
		"SPEAKER_02": {0.1, 1, 0},
		"SPEAKER_03": {0, 0, 1},
	}, 0.75)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if names["SPEAKER_01"].Name != "Alice" || names["SPEAKER_02"].Name != "Bob" {
		t.Fatalf("unexpected names %+v", names)
	}
	if _, ok := names["SPEAKER_00"]; ok {
		t.Fatal("weaker duplicate match must stay anonymous")
	}
	if _, ok := names["SPEAKER_03"]; ok {
		t.Fatal("unknown speaker must stay anonymous")
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		a, b []float64
		want float64
	}{
		{[]float64{1, 0}, []float64{1, 0}, 1},
		{[]float64{1, 0}, []float64{0, 1}, 0},
		{[]float64{1, 0}, []float64{-1, 0}, -1},
		{[]float64{1, 0}, []float64{1}, 0},
		{[]float64{0, 0}, []float64{1, 0}, 0},
		{nil, nil, 0},
	}
	for _, tt := range tests {
		if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestEmbeddingRoundTrip(t *testing.T) {
	in := []float64{0.25, -1.5, 3}
	out, err := decodeEmbedding(encodeEmbedding(in))
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("decoded %v, want %v", out, in)
		}
	}
	if _, err := decodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated blob")
	}
}
