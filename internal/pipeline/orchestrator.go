package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"scribe/internal/config"
	"scribe/internal/fallback"
	"scribe/internal/job"
	"scribe/internal/logging"
	"scribe/internal/prompts"
)

// phaseHandler performs the work of one active status and returns the
// status that follows it.
type phaseHandler func(ctx context.Context, r *jobRun) (job.Status, error)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the base logger; per-job logs tee into it.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithVersion sets the version written into transcript headers.
func WithVersion(version string) Option {
	return func(o *Orchestrator) { o.version = version }
}

// Orchestrator runs queued jobs one at a time.
type Orchestrator struct {
	cfg      config.Config
	queue    *job.Queue
	deps     Dependencies
	logger   *slog.Logger
	now      func() time.Time
	version  string
	handlers map[job.Status]phaseHandler

	mu            sync.Mutex
	current       string
	cancelCurrent atomic.Bool
	cancelAll     atomic.Bool
}

// New constructs an orchestrator over queue. cfg is copied.
func New(cfg config.Config, queue *job.Queue, deps Dependencies, opts ...Option) *Orchestrator {
	if deps.Fallback == nil {
		deps.Fallback = fallback.NewPolicy(cfg, nil)
	}
	if deps.Prompts == nil {
		deps.Prompts = prompts.Default()
	}
	o := &Orchestrator{
		cfg:     cfg,
		queue:   queue,
		deps:    deps,
		logger:  logging.NewNop(),
		now:     time.Now,
		version: "dev",
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "pipeline")
	o.handlers = map[job.Status]phaseHandler{
		job.StatusAudioConversion:       o.convertAudio,
		job.StatusSpeakerIdentification: o.identifySpeakers,
		job.StatusTranscription:         o.transcribe,
	}
	return o
}

// Run processes waiting jobs until none remain, cancel-all is requested, or
// ctx ends. Jobs still waiting after a cancel-all are marked canceled.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			o.cancelWaiting("canceled before start")
			return err
		}
		if o.cancelAll.Load() {
			o.cancelWaiting("canceled before start")
			return nil
		}
		next, ok := o.queue.NextWaiting()
		if !ok {
			return nil
		}
		o.process(ctx, next.ID)
		o.deps.Metrics.ObserveQueue(o.queue.Summary())
	}
}

// CancelCurrent stops the running job; the queue then continues. It reports
// whether a job was running.
func (o *Orchestrator) CancelCurrent() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == "" {
		return false
	}
	o.cancelCurrent.Store(true)
	o.logger.Info("cancel requested for current job",
		logging.String(logging.FieldJobID, o.current),
		logging.String(logging.FieldEventType, "cancel_current"),
	)
	return true
}

// CancelAll stops the running job and every waiting job. It reports whether
// a job was running.
func (o *Orchestrator) CancelAll() bool {
	o.cancelAll.Store(true)
	o.mu.Lock()
	running := o.current != ""
	o.mu.Unlock()
	o.logger.Info("cancel requested for all jobs",
		logging.Bool("running", running),
		logging.String(logging.FieldEventType, "cancel_all"),
	)
	return running
}

// Current returns a snapshot of the running job.
func (o *Orchestrator) Current() (job.Job, bool) {
	o.mu.Lock()
	id := o.current
	o.mu.Unlock()
	if id == "" {
		return job.Job{}, false
	}
	return o.queue.Get(id)
}

func (o *Orchestrator) setCurrent(id string) {
	o.mu.Lock()
	o.current = id
	o.cancelCurrent.Store(false)
	o.mu.Unlock()
}

func (o *Orchestrator) canceled(ctx context.Context) func() bool {
	return func() bool {
		return o.cancelCurrent.Load() || o.cancelAll.Load() || ctx.Err() != nil
	}
}

func (o *Orchestrator) cancelWaiting(reason string) {
	for _, j := range o.queue.Waiting() {
		err := o.queue.Update(j.ID, func(live *job.Job) error {
			return live.SetFailed(job.StatusCanceled, reason, "")
		})
		if err != nil {
			o.logger.Debug("waiting job not canceled", logging.String(logging.FieldJobID, j.ID), logging.Error(err))
			continue
		}
		o.deps.Metrics.JobCompleted(job.StatusCanceled)
	}
}

// process runs one job from waiting to a terminal status.
func (o *Orchestrator) process(ctx context.Context, id string) {
	o.setCurrent(id)
	defer o.setCurrent("")

	if err := o.queue.Update(id, func(j *job.Job) error { return j.Transition(job.StatusAudioConversion) }); err != nil {
		o.logger.Warn("job could not start", logging.String(logging.FieldJobID, id), logging.Error(err))
		return
	}
	r, err := o.newJobRun(ctx, id)
	if err != nil {
		o.fail(nil, id, err)
		return
	}
	defer r.close()

	r.logger.Info("job started",
		logging.String("audio", r.job.AudioPath),
		logging.String("output", r.job.OutputPath),
		logging.String("format", string(r.job.Format)),
		logging.String("language", r.job.Language.String()),
		logging.String("speakers", r.job.Diarization.String()),
		logging.String(logging.FieldEventType, "job_start"),
	)

	status := job.StatusAudioConversion
	for status.IsActive() {
		handler, ok := o.handlers[status]
		if !ok {
			o.fail(r, id, errors.New("no handler for status "+string(status)))
			return
		}
		phaseStart := o.now()
		r.phase = status
		next, err := handler(r.phaseContext(status), r)
		o.deps.Metrics.ObservePhase(status, o.now().Sub(phaseStart))
		if err == nil && next != job.StatusFinished && r.canceled() {
			err = canceledError(status)
		}
		if err != nil {
			o.fail(r, id, err)
			return
		}
		if err := o.queue.Update(id, func(j *job.Job) error { return j.Transition(next) }); err != nil {
			o.fail(r, id, err)
			return
		}
		r.logger.Debug("phase completed",
			logging.String("next_status", string(next)),
			logging.Duration("phase_duration", o.now().Sub(phaseStart)),
			logging.String(logging.FieldEventType, "phase_complete"),
		)
		status = next
	}

	o.deps.Metrics.JobCompleted(status)
	o.deps.Metrics.SetProgress(1)
	final, _ := o.queue.Get(id)
	r.logger.Info("job finished",
		logging.String("output", final.OutputPath),
		logging.Int("segments", r.segments()),
		logging.Duration("elapsed", final.Elapsed(o.now())),
		logging.String(logging.FieldEventType, "job_finished"),
	)
}

// setProgress records monotonic overall progress for the current job.
func (o *Orchestrator) setProgress(r *jobRun, value float64) {
	var updated float64
	_ = o.queue.Update(r.job.ID, func(j *job.Job) error {
		j.SetProgress(value)
		updated = j.Progress
		return nil
	})
	o.deps.Metrics.SetProgress(updated)
	if r.sampler.ShouldLog(string(r.phase), updated) {
		r.logger.Info("progress",
			logging.Float64("progress", updated),
			logging.String(logging.FieldEventType, "job_progress"),
		)
	}
}
