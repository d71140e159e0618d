package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"scribe/internal/audio"
	"scribe/internal/config"
	"scribe/internal/job"
	"scribe/internal/logging"
	"scribe/internal/metrics"
	"scribe/internal/services"
	"scribe/internal/speakerdb"
	"scribe/internal/testsupport"
	"scribe/internal/worker"
)

type progressStep struct {
	step string
	pct  float64
}

// attempt scripts one worker run.
type attempt struct {
	progress []progressStep
	vad      *worker.VAD
	segments []worker.Segment
	result   worker.Result
	err      error
	block    bool
	// onResult runs after the last segment, just before the result.
	onResult func()
}

type fakeStarter struct {
	mu       sync.Mutex
	scripts  map[string]map[worker.Entrypoint][]attempt
	devices  map[worker.Entrypoint][]string
	blocked  chan string
	observe  func(id string)
	launches int
}

func newFakeStarter() *fakeStarter {
	return &fakeStarter{
		scripts: map[string]map[worker.Entrypoint][]attempt{},
		devices: map[worker.Entrypoint][]string{},
		blocked: make(chan string, 8),
	}
}

func (f *fakeStarter) script(id string, entry worker.Entrypoint, attempts ...attempt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scripts[id] == nil {
		f.scripts[id] = map[worker.Entrypoint][]attempt{}
	}
	f.scripts[id][entry] = append(f.scripts[id][entry], attempts...)
}

func (f *fakeStarter) Start(_ context.Context, entry worker.Entrypoint, args any) (WorkerRun, error) {
	var path, device string
	switch a := args.(type) {
	case worker.DiarizeArgs:
		path, device = a.AudioPath, a.Device
	case worker.TranscribeArgs:
		path, device = a.AudioPath, a.Device
	default:
		return nil, errors.New("unexpected args")
	}
	id := strings.TrimSuffix(filepath.Base(path), ".wav")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.launches++
	f.devices[entry] = append(f.devices[entry], device)
	next := defaultAttempt(entry)
	if queued := f.scripts[id][entry]; len(queued) > 0 {
		next = queued[0]
		f.scripts[id][entry] = queued[1:]
	}
	return &fakeRun{id: id, a: next, starter: f}, nil
}

func (f *fakeStarter) devicesFor(entry worker.Entrypoint) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.devices[entry]...)
}

func defaultAttempt(entry worker.Entrypoint) attempt {
	if entry == worker.Diarize {
		return attempt{result: worker.Result{OK: true}}
	}
	return attempt{
		segments: []worker.Segment{{Start: 0, End: 1, Text: " Text."}},
		result:   worker.Result{OK: true, Info: map[string]any{"language": "en"}},
	}
}

type fakeRun struct {
	id      string
	a       attempt
	starter *fakeStarter
	closed  int
}

func (r *fakeRun) notify() {
	if r.starter.observe != nil {
		r.starter.observe(r.id)
	}
}

func (r *fakeRun) Run(h worker.Handlers, canceled func() bool) (worker.Result, error) {
	for _, p := range r.a.progress {
		if h.Progress != nil {
			h.Progress(p.step, p.pct, "")
		}
		r.notify()
	}
	if r.a.vad != nil && h.VAD != nil {
		if err := h.VAD(*r.a.vad); err != nil {
			return worker.Result{}, err
		}
	}
	for _, seg := range r.a.segments {
		if h.Segment != nil {
			if err := h.Segment(seg); err != nil {
				return worker.Result{}, err
			}
		}
		r.notify()
	}
	if r.a.block {
		r.starter.blocked <- r.id
		deadline := time.Now().Add(5 * time.Second)
		for !canceled() {
			if time.Now().After(deadline) {
				return worker.Result{}, errors.New("fake worker never canceled")
			}
			time.Sleep(5 * time.Millisecond)
		}
		return worker.Result{}, services.Wrap(services.ErrCanceled, "fake", "run", "worker stopped on request", nil)
	}
	if r.a.onResult != nil {
		r.a.onResult()
	}
	return r.a.result, r.a.err
}

func (r *fakeRun) Close() error {
	r.closed++
	return nil
}

type fakeConverter struct {
	t     testing.TB
	mu    sync.Mutex
	calls int
	fail  map[string]error
}

func (c *fakeConverter) Convert(_ context.Context, req audio.Request, _ func() bool) error {
	c.mu.Lock()
	c.calls++
	err := c.fail[req.Source]
	c.mu.Unlock()
	if err != nil {
		return err
	}
	testsupport.WriteWAV(c.t, req.Target, 5)
	return nil
}

type fakeSpeakers struct {
	matches map[string]speakerdb.Match
	err     error
}

func (f fakeSpeakers) Identify(context.Context, map[string][]float64, float64) (map[string]speakerdb.Match, error) {
	return f.matches, f.err
}

type harness struct {
	t         *testing.T
	cfg       *config.Config
	queue     *job.Queue
	starter   *fakeStarter
	converter *fakeConverter
	metrics   *metrics.Metrics
	dir       string
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &harness{
		t:         t,
		cfg:       cfg,
		queue:     job.NewQueue(),
		starter:   newFakeStarter(),
		converter: &fakeConverter{t: t, fail: map[string]error{}},
		metrics:   metrics.New(),
		dir:       t.TempDir(),
	}
}

func (h *harness) addJob(name string, mutate func(*job.Request)) *job.Job {
	h.t.Helper()
	audioPath := filepath.Join(h.dir, name+".mp3")
	if err := os.WriteFile(audioPath, []byte("mp3"), 0o644); err != nil {
		h.t.Fatalf("write audio: %v", err)
	}
	req := job.Request{AudioPath: audioPath, OutputPath: filepath.Join(h.dir, name+".txt")}
	if mutate != nil {
		mutate(&req)
	}
	j, err := job.New(req)
	if err != nil {
		h.t.Fatalf("job.New: %v", err)
	}
	if err := h.queue.Add(j); err != nil {
		h.t.Fatalf("queue.Add: %v", err)
	}
	return j
}

func (h *harness) orchestrator(mutate func(*Dependencies)) *Orchestrator {
	deps := Dependencies{
		Converter: h.converter,
		Inspect:   audio.Inspect,
		Workers:   h.starter,
		Metrics:   h.metrics,
	}
	if mutate != nil {
		mutate(&deps)
	}
	return New(*h.cfg, h.queue, deps, WithLogger(logging.NewNop()), WithVersion("test"))
}

func (h *harness) job(id string) job.Job {
	h.t.Helper()
	j, ok := h.queue.Get(id)
	if !ok {
		h.t.Fatalf("job %s missing", id)
	}
	return j
}

func (h *harness) readOutput(j job.Job) string {
	h.t.Helper()
	data, err := os.ReadFile(j.OutputPath)
	if err != nil {
		h.t.Fatalf("read output: %v", err)
	}
	return string(data)
}

func (h *harness) assertMetric(line string) {
	h.t.Helper()
	rec := httptest.NewRecorder()
	h.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), line) {
		h.t.Fatalf("metrics missing %q:\n%s", line, rec.Body.String())
	}
}
