package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if got := newFanoutHandler(nil, inner, nil); got != inner {
		t.Fatalf("expected the single non-nil handler unwrapped, got %T", got)
	}
}

func TestFanoutHandlerRoutesByLevel(t *testing.T) {
	var console, artifact bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&console, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&artifact, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("fanout should be enabled when any handler accepts debug")
	}
	logger := slog.New(h)
	logger.Debug("worker detail")
	logger.Info("phase started")

	if strings.Contains(console.String(), "worker detail") {
		t.Fatal("info handler received a debug record")
	}
	if !strings.Contains(artifact.String(), "worker detail") || !strings.Contains(artifact.String(), "phase started") {
		t.Fatalf("debug handler missing records: %s", artifact.String())
	}
	if !strings.Contains(console.String(), "phase started") {
		t.Fatalf("info handler missing record: %s", console.String())
	}
}

func TestFanoutHandlerAttrsAndGroups(t *testing.T) {
	var a, b bytes.Buffer
	h := newFanoutHandler(slog.NewJSONHandler(&a, nil), slog.NewJSONHandler(&b, nil))
	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String(FieldJobID, "job-1")}).WithGroup("worker"))
	logger.Info("message", slog.String("step", "segmentation"))

	for name, buf := range map[string]*bytes.Buffer{"a": &a, "b": &b} {
		out := buf.String()
		if !strings.Contains(out, `"job_id":"job-1"`) {
			t.Fatalf("%s missing job id: %s", name, out)
		}
		if !strings.Contains(out, `"worker":{"step":"segmentation"}`) {
			t.Fatalf("%s missing grouped attr: %s", name, out)
		}
	}
}

type failingHandler struct{ NoopHandler }

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestFanoutHandlerKeepsWritingAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	h := newFanoutHandler(failingHandler{}, slog.NewJSONHandler(&buf, nil))
	rec := slog.NewRecord(testTime, slog.LevelInfo, "still logged", 0)
	if err := h.Handle(context.Background(), rec); err == nil {
		t.Fatal("expected the failing handler's error")
	}
	if !strings.Contains(buf.String(), "still logged") {
		t.Fatal("second handler skipped after first failed")
	}
}

func TestTeeLogger(t *testing.T) {
	var base, tee bytes.Buffer
	logger := TeeLogger(slog.New(slog.NewJSONHandler(&base, nil)), slog.NewJSONHandler(&tee, nil))
	logger.Info("teed")
	if base.Len() == 0 || tee.Len() == 0 {
		t.Fatalf("expected both outputs, base=%q tee=%q", base.String(), tee.String())
	}

	tee.Reset()
	TeeLogger(nil, slog.NewJSONHandler(&tee, nil)).Info("no base")
	if !strings.Contains(tee.String(), "no base") {
		t.Fatal("expected tee output without a base logger")
	}
}
