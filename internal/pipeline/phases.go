package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"scribe/internal/align"
	"scribe/internal/audio"
	"scribe/internal/fallback"
	"scribe/internal/job"
	"scribe/internal/logging"
	"scribe/internal/preflight"
	"scribe/internal/services"
	"scribe/internal/timecode"
	"scribe/internal/worker"
)

// convertAudio checks the job's paths and prepares mono 16 kHz PCM audio.
func (o *Orchestrator) convertAudio(ctx context.Context, r *jobRun) (job.Status, error) {
	const phase = string(job.StatusAudioConversion)
	if failed := preflight.Failures(preflight.ForJob(&o.cfg, r.job)); len(failed) > 0 {
		return "", services.Wrap(services.ErrValidation, phase, "preflight", preflight.Summary(failed), nil)
	}

	r.audioPath = filepath.Join(o.cfg.Paths.WorkDir, r.job.ID+".wav")
	req := audio.Request{
		Source:  r.job.AudioPath,
		Target:  r.audioPath,
		StartMS: r.job.StartMS,
		StopMS:  r.job.StopMS,
	}
	if err := o.deps.Converter.Convert(ctx, req, r.canceled); err != nil {
		return "", err
	}
	info, err := o.deps.Inspect(r.audioPath)
	if err != nil {
		return "", err
	}
	if err := info.Validate(); err != nil {
		return "", services.Wrap(services.ErrExternalTool, phase, "validate", err.Error(), err)
	}
	r.info = info
	o.setProgress(r, conversionEnd)
	r.logger.Info("audio prepared",
		logging.Duration("duration", info.Duration),
		logging.String(logging.FieldEventType, "audio_prepared"),
	)

	if r.job.Diarization.Enabled() {
		return job.StatusSpeakerIdentification, nil
	}
	return job.StatusTranscription, nil
}

// identifySpeakers runs the diarization worker, then names the speakers it
// found from the speaker database.
func (o *Orchestrator) identifySpeakers(ctx context.Context, r *jobRun) (job.Status, error) {
	progress := &diarizationProgress{}
	res, err := o.runWithFallback(ctx, r, fallback.Diarization, func(device string) (worker.Result, error) {
		args := worker.DiarizeArgs{
			AudioPath: r.audioPath,
			Pipeline:  o.cfg.Diarization.Pipeline,
			Device:    device,
		}
		if r.job.Diarization.Kind == job.DiarizationFixed {
			args.NumSpeakers = r.job.Diarization.Speakers
		}
		return o.runWorker(ctx, r, worker.Diarize, args, worker.Handlers{
			Log: r.workerLog,
			Progress: func(step string, pct float64, _ string) {
				if pct >= 0 {
					o.setProgress(r, progress.update(step, pct))
				}
			},
		})
	})
	if err != nil {
		return "", err
	}

	turns := make([]align.Turn, 0, len(res.Segments))
	for _, seg := range res.Segments {
		turns = append(turns, align.Turn{StartMS: seg.StartMS, EndMS: seg.EndMS, Label: seg.Label})
	}
	slices.SortStableFunc(turns, func(a, b align.Turn) int {
		return cmp.Compare(a.StartMS, b.StartMS)
	})
	r.turns = turns
	o.saveEmbeddings(r, res.Embeddings)
	r.names = o.matchSpeakers(ctx, r, res.Embeddings)
	o.setProgress(r, diarizationEnd)
	r.logger.Info("speakers identified",
		logging.Int("turns", len(turns)),
		logging.Int("speakers", len(res.Embeddings)),
		logging.Int("known_speakers", len(r.names)),
		logging.String(logging.FieldEventType, "speakers_identified"),
	)
	return job.StatusTranscription, nil
}

// matchSpeakers maps short labels to names from the speaker database. A
// database failure only costs the names.
func (o *Orchestrator) matchSpeakers(ctx context.Context, r *jobRun, embeddings map[string][]float64) map[string]string {
	if o.deps.Speakers == nil || len(embeddings) == 0 {
		return nil
	}
	matches, err := o.deps.Speakers.Identify(ctx, embeddings, o.cfg.Diarization.SpeakerMatchThreshold)
	if err != nil {
		logging.WarnWithContext(r.logger, "speaker database lookup failed", "speaker_match_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check speaker_db in the config"),
			logging.String(logging.FieldImpact, "speakers keep their numbered labels"),
		)
		return nil
	}
	names := make(map[string]string, len(matches))
	for label, m := range matches {
		short := align.ShortLabel(label)
		names[short] = m.Name
		r.logger.Info("known speaker recognised",
			logging.String("label", short),
			logging.String("name", m.Name),
			logging.Float64("similarity", m.Similarity),
			logging.String(logging.FieldEventType, "speaker_matched"),
		)
	}
	return names
}

// transcribe streams segments from the transcription worker into the
// transcript and saves the final document.
func (o *Orchestrator) transcribe(ctx context.Context, r *jobRun) (job.Status, error) {
	diarized := r.job.Diarization.Enabled()
	res, err := o.runWithFallback(ctx, r, fallback.Transcription, func(device string) (worker.Result, error) {
		sink := o.newSegmentSink(r, diarized)
		return o.runWorker(ctx, r, worker.Transcribe, o.transcribeArgs(r, device), worker.Handlers{
			Log:     r.workerLog,
			VAD:     sink.vad,
			Segment: sink.add,
		})
	})
	if err != nil {
		return "", err
	}
	if lang, ok := res.Info["language"].(string); ok && lang != "" {
		r.logger.Info("transcription language",
			logging.String("language", lang),
			logging.Any("probability", res.Info["language_probability"]),
			logging.String(logging.FieldEventType, "language_detected"),
		)
	}
	if err := r.autosaver.Final(); err != nil {
		return "", err
	}
	return job.StatusFinished, nil
}

func (o *Orchestrator) transcribeArgs(r *jobRun, device string) worker.TranscribeArgs {
	t := o.cfg.Transcription
	args := worker.TranscribeArgs{
		AudioPath:      r.audioPath,
		Model:          o.model(r),
		ModelsDir:      o.cfg.Paths.ModelsDir,
		Device:         device,
		ComputeType:    t.ComputeType,
		CPUThreads:     t.CPUThreads,
		BeamSize:       t.BeamSize,
		WordTimestamps: t.WordTimestamps,
		VADFilter:      t.VADFilter,
		VADThreshold:   t.VADThreshold,
		LanguageMode:   string(r.job.Language.Mode),
		Language:       r.job.Language.Code,
	}
	if r.job.Disfluencies {
		if r.job.Language.Mode == job.LanguageCode {
			args.Hotwords = o.deps.Prompts.For(r.job.Language.Code)
		} else {
			args.HotwordsByLanguage = map[string]string(o.deps.Prompts)
		}
	}
	return args
}

func (o *Orchestrator) model(r *jobRun) string {
	if m := strings.TrimSpace(r.job.Model); m != "" {
		return m
	}
	return o.cfg.Transcription.Model
}

// runWorker starts entry, dispatches its messages, and always closes it. A
// result with ok=false becomes a computation error carrying the worker trace.
func (o *Orchestrator) runWorker(ctx context.Context, r *jobRun, entry worker.Entrypoint, args any, h worker.Handlers) (worker.Result, error) {
	run, err := o.deps.Workers.Start(ctx, entry, args)
	if err != nil {
		return worker.Result{}, err
	}
	defer func() { _ = run.Close() }()

	res, err := run.Run(h, r.canceled)
	if err != nil {
		return res, err
	}
	if !res.OK {
		msg := strings.TrimSpace(res.Error)
		if msg == "" {
			msg = "worker reported failure"
		}
		err := services.Wrap(services.ErrComputation, string(r.phase), string(entry), msg, nil)
		return res, services.WithTrace(err, res.Trace)
	}
	return res, nil
}

// runWithFallback runs attempt on the component's device. An accelerator
// failure the policy accepts restarts the attempt on the CPU once; a failure
// on the CPU is flagged so its message carries the CPU marker.
func (o *Orchestrator) runWithFallback(ctx context.Context, r *jobRun, component fallback.Component, attempt func(device string) (worker.Result, error)) (worker.Result, error) {
	for {
		device := o.deps.Fallback.Device(component)
		res, err := attempt(device)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, services.ErrCanceled) || r.canceled() {
			return res, err
		}
		if device == fallback.DeviceCPU {
			r.cpuFailure = true
			return res, err
		}
		details := services.Details(err)
		text := err.Error() + "\n" + details.Trace
		if !o.deps.Fallback.Decide(ctx, component, text) {
			if fallback.Classify(text) == fallback.ClassAcceleration {
				wrapped := services.Wrap(services.ErrAcceleration, string(r.phase), string(component), details.Message, err)
				return res, services.WithTrace(wrapped, details.Trace)
			}
			return res, err
		}
		o.deps.Metrics.AccelerationFallback(string(component))
		logging.WarnWithContext(r.logger, "accelerator failed; retrying on the cpu", "cpu_fallback_retry",
			logging.String("component", string(component)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the gpu driver and memory"),
			logging.String(logging.FieldImpact, "the phase restarts on the cpu and runs slower"),
		)
	}
}

// documentHeader returns the title and header lines of a job's transcript.
func (o *Orchestrator) documentHeader(r *jobRun) (string, []string) {
	base := filepath.Base(r.job.AudioPath)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	header := []string{
		fmt.Sprintf("Transcribed with scribe %s (model %s, language %s, speakers %s)",
			o.version, o.model(r), r.job.Language.String(), r.job.Diarization.String()),
		"Audio file: " + r.job.AudioPath,
	}
	if r.job.StartMS > 0 || r.job.StopMS > 0 {
		stop := "end"
		if r.job.StopMS > 0 {
			stop = timecode.Clock(r.job.StopMS)
		}
		header = append(header, fmt.Sprintf("Range: %s - %s", timecode.Clock(r.job.StartMS), stop))
	}
	return title, header
}
