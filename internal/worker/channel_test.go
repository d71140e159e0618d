package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"scribe/internal/config"
	"scribe/internal/services"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.WorkDir = t.TempDir()
	cfg.Workers.TerminateGraceSeconds = 1
	cfg.Workers.PollIntervalMS = 20
	return cfg
}

func setHelperCommand(t *testing.T, mode string) *[]string {
	t.Helper()
	var captured []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		captured = append([]string{name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "SCRIBE_WORKER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &captured
}

func startHelper(t *testing.T, mode string) *Channel {
	t.Helper()
	setHelperCommand(t, mode)
	ch, err := NewLauncher(testConfig(t), nil).Start(context.Background(), Transcribe, TranscribeArgs{AudioPath: "/tmp/audio.wav"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

func TestChannelDeliversMessagesInOrder(t *testing.T) {
	ch := startHelper(t, "ordered")

	var events []string
	result, err := ch.Run(Handlers{
		Log: func(level, msg string) { events = append(events, "log:"+level+":"+msg) },
		Progress: func(step string, pct float64, _ string) {
			events = append(events, fmt.Sprintf("progress:%s:%.0f", step, pct))
		},
		VAD: func(v VAD) error {
			events = append(events, fmt.Sprintf("vad:%d:%d", v.SampleRate, len(v.Chunks)))
			return nil
		},
		Segment: func(s Segment) error {
			events = append(events, "segment:"+strings.TrimSpace(s.Text))
			return nil
		},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.OK {
		t.Fatalf("expected ok result, got %+v", result)
	}
	if got := result.Info["audio_path"]; got != "/tmp/audio.wav" {
		t.Fatalf("worker did not receive stdin args, info=%v", result.Info)
	}
	want := []string{
		"log:info:loading",
		"progress:segmentation:50",
		"vad:16000:2",
		"segment:one",
		"segment:two",
		"segment:three",
	}
	if strings.Join(events, "|") != strings.Join(want, "|") {
		t.Fatalf("events = %v, want %v", events, want)
	}
}

func TestChannelKeepsNonJSONOutputAsLog(t *testing.T) {
	ch := startHelper(t, "noise")
	var logs []string
	result, err := ch.Run(Handlers{Log: func(level, msg string) { logs = append(logs, level+":"+msg) }}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.OK || len(logs) != 1 || logs[0] != "debug:Downloading model.bin" {
		t.Fatalf("unexpected result=%+v logs=%v", result, logs)
	}
}

func TestChannelReportsFailureResult(t *testing.T) {
	ch := startHelper(t, "failure")
	result, err := ch.Run(Handlers{}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.OK || !strings.Contains(result.Error, "CUDA out of memory") || result.Trace == "" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestChannelDetectsCrash(t *testing.T) {
	ch := startHelper(t, "crash")
	segments := 0
	_, err := ch.Run(Handlers{Segment: func(Segment) error { segments++; return nil }}, nil)
	if !errors.Is(err, services.ErrWorkerCrash) {
		t.Fatalf("expected worker crash, got %v", err)
	}
	if segments != 1 {
		t.Fatalf("segments before crash = %d, want 1", segments)
	}
	details := services.Details(err)
	if !strings.Contains(details.Message, "exit code 3") {
		t.Fatalf("message missing exit code: %q", details.Message)
	}
	if !strings.Contains(details.Trace, "segfault in native code") {
		t.Fatalf("trace missing stderr tail: %q", details.Trace)
	}
	if ch.ExitCode() != 3 {
		t.Fatalf("exit code = %d, want 3", ch.ExitCode())
	}
}

func TestChannelDetectsCrashWhileDescendantHoldsOutput(t *testing.T) {
	ch := startHelper(t, "orphan")
	start := time.Now()
	_, err := ch.Run(Handlers{}, nil)
	if !errors.Is(err, services.ErrWorkerCrash) {
		t.Fatalf("expected worker crash, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("crash reported after %s", elapsed)
	}
	if msg := services.Details(err).Message; !strings.Contains(msg, "exit code 3") {
		t.Fatalf("message missing exit code: %q", msg)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-ch.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("stdout reader still blocked after the process group was released")
	}
}

func TestLauncherKeepsCommandEnvironment(t *testing.T) {
	cfg := testConfig(t)
	cfg.Diarization.HFToken = "hf_secret"
	env := NewLauncher(cfg, nil).environment([]string{"SCRIBE_WORKER_MODE=ordered"})
	joined := strings.Join(env, "\n")
	for _, want := range []string{"SCRIBE_WORKER_MODE=ordered", "PYTHONUNBUFFERED=1", "HF_TOKEN=hf_secret"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("environment missing %q: %v", want, env)
		}
	}
	if len(NewLauncher(cfg, nil).environment(nil)) < len(os.Environ()) {
		t.Fatal("nil base should start from the process environment")
	}
}

func TestChannelCancellationTerminatesWorker(t *testing.T) {
	ch := startHelper(t, "hang")
	var seen atomic.Bool
	start := time.Now()
	_, err := ch.Run(Handlers{Log: func(string, string) { seen.Store(true) }}, seen.Load)
	if !errors.Is(err, services.ErrCanceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !ch.Exited() {
		t.Fatal("worker still running after cancellation")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("cancellation took %s", elapsed)
	}
}

func TestChannelCloseEscalatesToKill(t *testing.T) {
	ch := startHelper(t, "stubborn")
	select {
	case <-ch.messages:
	case <-time.After(10 * time.Second):
		t.Fatal("helper never reported that it ignores SIGTERM")
	}

	start := time.Now()
	if err := ch.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !ch.Exited() {
		t.Fatal("worker survived SIGKILL")
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("Close returned after %s, expected to wait out the grace period", elapsed)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestChannelConsumerErrorStopsWorker(t *testing.T) {
	ch := startHelper(t, "ordered")
	stop := errors.New("disk full")
	count := 0
	_, err := ch.Run(Handlers{Segment: func(Segment) error {
		count++
		if count == 2 {
			return stop
		}
		return nil
	}}, nil)
	if !errors.Is(err, stop) {
		t.Fatalf("expected consumer error, got %v", err)
	}
	if count != 2 {
		t.Fatalf("consumer called %d times, want 2", count)
	}
}

func TestContextCancelStopsRun(t *testing.T) {
	setHelperCommand(t, "hang")
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := NewLauncher(testConfig(t), nil).Start(ctx, Diarize, DiarizeArgs{AudioPath: "/tmp/a.wav"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ch.Close()
	cancel()
	if _, err := ch.Run(Handlers{}, nil); !errors.Is(err, services.ErrCanceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestLauncherBuildsUVXCommand(t *testing.T) {
	captured := setHelperCommand(t, "ordered")
	cfg := testConfig(t)
	cfg.Workers.ExtraArgs = []string{"--python", "3.11"}
	ch, err := NewLauncher(cfg, nil).Start(context.Background(), Transcribe, TranscribeArgs{AudioPath: "/tmp/audio.wav"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := ch.Run(Handlers{}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	_ = ch.Close()

	script := filepath.Join(cfg.Paths.WorkDir, "workers", "transcribe.py")
	want := []string{"uvx", "--quiet", "--with", "faster-whisper", "--python", "3.11", "python", script}
	if strings.Join(*captured, " ") != strings.Join(want, " ") {
		t.Fatalf("command = %v, want %v", *captured, want)
	}
	data, err := os.ReadFile(script)
	if err != nil {
		t.Fatalf("script not materialized: %v", err)
	}
	if !strings.Contains(string(data), `"type": "vad"`) {
		t.Fatal("materialized script does not look like the transcription worker")
	}
}

func TestLauncherUsesInterpreterDirectly(t *testing.T) {
	captured := setHelperCommand(t, "ordered")
	cfg := testConfig(t)
	cfg.Workers.PythonLauncher = "/usr/bin/python3"
	ch, err := NewLauncher(cfg, nil).Start(context.Background(), Diarize, DiarizeArgs{AudioPath: "/tmp/audio.wav"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, _ = ch.Run(Handlers{}, nil)
	_ = ch.Close()
	want := []string{"/usr/bin/python3", filepath.Join(cfg.Paths.WorkDir, "workers", "diarize.py")}
	if strings.Join(*captured, " ") != strings.Join(want, " ") {
		t.Fatalf("command = %v, want %v", *captured, want)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	var args map[string]any
	_ = json.NewDecoder(os.Stdin).Decode(&args)
	emit := func(v any) {
		data, _ := json.Marshal(v)
		fmt.Println(string(data))
	}

	switch os.Getenv("SCRIBE_WORKER_MODE") {
	case "ordered":
		emit(map[string]any{"type": "log", "level": "info", "msg": "loading"})
		emit(map[string]any{"type": "progress", "step": "segmentation", "pct": 50})
		emit(map[string]any{"type": "vad", "sample_rate": 16000, "duration": 4.0,
			"chunks": []map[string]int{{"start": 0, "end": 16000}, {"start": 32000, "end": 64000}}})
		for i, text := range []string{" one", " two", " three"} {
			emit(map[string]any{"type": "segment", "segment": map[string]any{"start": float64(i), "end": float64(i) + 0.9, "text": text}})
		}
		emit(map[string]any{"type": "result", "ok": true, "info": map[string]any{"audio_path": args["audio_path"]}})
		os.Exit(0)
	case "noise":
		fmt.Println("Downloading model.bin")
		emit(map[string]any{"type": "result", "ok": true})
		os.Exit(0)
	case "failure":
		emit(map[string]any{"type": "result", "ok": false, "error": "RuntimeError: CUDA out of memory", "trace": "Traceback (most recent call last):"})
		os.Exit(0)
	case "crash":
		emit(map[string]any{"type": "segment", "segment": map[string]any{"start": 0, "end": 1, "text": "partial"}})
		fmt.Fprintln(os.Stderr, "segfault in native code")
		os.Exit(3)
	case "orphan":
		child := exec.Command(os.Args[0], "-test.run=TestHelperProcess")
		child.Env = append(os.Environ(), "SCRIBE_WORKER_MODE=hang")
		child.Stdout = os.Stdout
		child.Stderr = os.Stderr
		if err := child.Start(); err != nil {
			os.Exit(4)
		}
		os.Exit(3)
	case "hang":
		emit(map[string]any{"type": "log", "level": "info", "msg": "waiting"})
		time.Sleep(time.Hour)
	case "stubborn":
		signal.Ignore(syscall.SIGTERM)
		emit(map[string]any{"type": "log", "level": "info", "msg": "ignoring sigterm"})
		time.Sleep(time.Hour)
	}
	os.Exit(0)
}
