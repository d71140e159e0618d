package pipeline

import (
	"scribe/internal/align"
	"scribe/internal/job"
	"scribe/internal/pause"
	"scribe/internal/transcript"
	"scribe/internal/worker"
)

// segmentSink folds streamed transcription segments through the pause
// adjuster, the speaker aligner, and the assembler, in arrival order.
type segmentSink struct {
	o         *Orchestrator
	r         *jobRun
	diarized  bool
	assembler *transcript.Assembler
	state     transcript.State
	adjuster  *pause.Adjuster
	duration  float64
}

// newSegmentSink starts a fresh document for one transcription attempt. A
// retry keeps saving to the path the previous attempt ended up using.
func (o *Orchestrator) newSegmentSink(r *jobRun, diarized bool) *segmentSink {
	title, header := o.documentHeader(r)
	doc := transcript.NewDocument(transcript.Meta{
		Title:     title,
		Header:    header,
		AudioPath: r.job.AudioPath,
		OffsetMS:  r.job.StartMS,
	})
	path := r.job.OutputPath
	if r.autosaver != nil {
		path = r.autosaver.Path()
	}
	id := r.job.ID
	r.doc = doc
	r.autosaver = transcript.NewAutosaver(doc, r.job.Format, path, o.cfg.AutosaveInterval(), o.cfg.Transcription.AutoSave,
		transcript.WithClock(o.now),
		transcript.WithAutosaveLogger(r.logger),
		transcript.WithSaveHook(func(saved string, partial bool) {
			_ = o.queue.Update(id, func(j *job.Job) error {
				j.OutputPath = saved
				j.PartialTranscript = partial
				return nil
			})
		}),
	)
	return &segmentSink{
		o:        o,
		r:        r,
		diarized: diarized,
		assembler: transcript.NewAssembler(doc, transcript.Options{
			Diarization:       diarized,
			Timestamps:        r.job.Timestamps,
			TimestampInterval: o.cfg.TimestampInterval(),
			PauseThreshold:    r.job.Pause.Threshold(),
		}),
		duration: r.info.Seconds(),
	}
}

// vad installs the pause windows reported before the first segment.
func (s *segmentSink) vad(v worker.VAD) error {
	chunks := make([]pause.Chunk, 0, len(v.Chunks))
	for _, c := range v.Chunks {
		chunks = append(chunks, pause.Chunk{Start: c.Start, End: c.End})
	}
	s.adjuster = pause.New(chunks, v.SampleRate, v.Duration)
	if v.Duration > 0 {
		s.duration = v.Duration
	}
	return nil
}

// add commits one segment. An autosave failure stops the worker.
func (s *segmentSink) add(seg worker.Segment) error {
	start, end := s.adjuster.Adjust(seg.Start, seg.End)
	item := transcript.Item{
		StartMS: secondsToMS(start),
		EndMS:   secondsToMS(end),
		Text:    seg.Text,
	}
	if s.diarized {
		match := align.FindSpeaker(s.r.turns, align.Span{StartMS: item.StartMS, EndMS: item.EndMS})
		item.Speaker = align.Rename(match.Display(s.r.job.MarkOverlap), s.r.names)
	}
	s.state = s.assembler.Add(s.state, item)
	s.o.deps.Metrics.SegmentAssembled()

	if _, err := s.r.autosaver.Tick(); err != nil {
		return err
	}
	if s.duration > 0 {
		s.o.setProgress(s.r, transcriptionOverall(100*seg.End/s.duration, s.diarized))
	}
	return nil
}

func secondsToMS(seconds float64) int64 {
	return int64(seconds*1000 + 0.5)
}
