package transcript

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scribe/internal/job"
	"scribe/internal/services"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestAutosaverInterval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	clock := &fakeClock{now: time.Unix(1000, 0)}
	var saves []bool
	doc := NewDocument(Meta{Title: "t"})
	saver := NewAutosaver(doc, job.FormatText, path, time.Second, true,
		WithClock(clock.Now),
		WithSaveHook(func(_ string, partial bool) { saves = append(saves, partial) }),
	)

	clock.Advance(10 * time.Second)
	if saved, err := saver.Tick(); saved || err != nil {
		t.Fatalf("empty document must not be saved: %v %v", saved, err)
	}

	NewAssembler(doc, Options{}).Add(State{}, Item{StartMS: 0, EndMS: 100, Text: "hello"})
	if saved, err := saver.Tick(); !saved || err != nil {
		t.Fatalf("expected save after interval: %v %v", saved, err)
	}
	clock.Advance(4 * time.Second)
	if saved, _ := saver.Tick(); saved {
		t.Fatal("interval below the minimum must not save")
	}
	clock.Advance(time.Second)
	if saved, _ := saver.Tick(); !saved {
		t.Fatal("expected save once the minimum interval elapsed")
	}
	if err := saver.Final(); err != nil {
		t.Fatalf("Final: %v", err)
	}
	if len(saves) != 3 || !saves[0] || !saves[1] || saves[2] {
		t.Fatalf("unexpected save sequence %v", saves)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), "hello") {
		t.Fatalf("saved content = %q, %v", data, err)
	}
}

func TestAutosaverDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.html")
	clock := &fakeClock{now: time.Unix(0, 0)}
	doc := NewDocument(Meta{Title: "t"})
	NewAssembler(doc, Options{}).Add(State{}, Item{StartMS: 0, EndMS: 100, Text: "hello"})
	saver := NewAutosaver(doc, job.FormatHTML, path, 0, false, WithClock(clock.Now))
	clock.Advance(time.Hour)
	if saved, _ := saver.Tick(); saved {
		t.Fatal("disabled autosave must not save")
	}
	if saved, _ := saver.SavePartial(); saved {
		t.Fatal("disabled autosave must not keep partial transcripts")
	}
	if err := saver.Final(); err != nil {
		t.Fatalf("Final: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("final save missing: %v", err)
	}
}

func TestAutosaverRenamesOnConflict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	// A directory in place of the file makes the rename fail.
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "out_1.txt"), []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc := NewDocument(Meta{Title: "t"})
	saver := NewAutosaver(doc, job.FormatText, path, 0, true)
	if err := saver.Final(); err != nil {
		t.Fatalf("Final: %v", err)
	}
	if want := filepath.Join(dir, "out_2.txt"); saver.Path() != want {
		t.Fatalf("Path = %q, want %q", saver.Path(), want)
	}
	kept, _ := os.ReadFile(filepath.Join(dir, "out_1.txt"))
	if string(kept) != "keep" {
		t.Fatal("existing alternative must not be overwritten")
	}
}

func TestAutosaverSaveFailed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.txt")
	saver := NewAutosaver(NewDocument(Meta{}), job.FormatText, path, 0, true)
	err := saver.Final()
	if !errors.Is(err, services.ErrSaveFailed) {
		t.Fatalf("expected ErrSaveFailed, got %v", err)
	}
}
