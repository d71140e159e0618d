package job_test

import (
	"errors"
	"testing"

	"scribe/internal/job"
)

func newJob(t *testing.T, output string) *job.Job {
	t.Helper()
	j, err := job.New(job.Request{AudioPath: "/audio/interview.mp3", OutputPath: output})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return j
}

func TestNewDerivesFormatFromExtension(t *testing.T) {
	j := newJob(t, "/out/interview.html")
	if j.Format != job.FormatHTML {
		t.Fatalf("expected html format, got %q", j.Format)
	}
	if j.Status != job.StatusWaiting {
		t.Fatalf("expected waiting status, got %q", j.Status)
	}
	if j.ID == "" {
		t.Fatal("expected job id")
	}
	if j.Language.Mode != job.LanguageAuto || j.Diarization.Kind != job.DiarizationNone {
		t.Fatalf("unexpected defaults: %+v %+v", j.Language, j.Diarization)
	}
}

func TestNewVTTForcesPlainDecorations(t *testing.T) {
	j, err := job.New(job.Request{
		AudioPath:   "/audio/a.wav",
		OutputPath:  "/out/a.vtt",
		Pause:       2,
		MarkOverlap: true,
		Timestamps:  true,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if j.Pause != 0 || j.MarkOverlap || j.Timestamps {
		t.Fatalf("expected vtt to disable decorations, got pause=%d overlap=%v timestamps=%v", j.Pause, j.MarkOverlap, j.Timestamps)
	}
}

func TestNewRejectsInvalidRequests(t *testing.T) {
	cases := []struct {
		name string
		req  job.Request
	}{
		{"missing audio", job.Request{OutputPath: "/out/a.txt"}},
		{"missing output", job.Request{AudioPath: "/a.wav"}},
		{"unknown extension", job.Request{AudioPath: "/a.wav", OutputPath: "/out/a.docx"}},
		{"stop before start", job.Request{AudioPath: "/a.wav", OutputPath: "/out/a.txt", StartMS: 5000, StopMS: 1000}},
		{"pause tier", job.Request{AudioPath: "/a.wav", OutputPath: "/out/a.txt", Pause: 7}},
		{"fixed speakers", job.Request{AudioPath: "/a.wav", OutputPath: "/out/a.txt", Diarization: job.DiarizationMode{Kind: job.DiarizationFixed}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := job.New(tc.req); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestTransitionRejectsIllegalEdges(t *testing.T) {
	j := newJob(t, "/out/a.txt")
	if err := j.Transition(job.StatusTranscription); !errors.Is(err, job.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if j.Status != job.StatusWaiting {
		t.Fatalf("status changed on rejected transition: %s", j.Status)
	}
	for _, next := range []job.Status{job.StatusAudioConversion, job.StatusTranscription, job.StatusFinished} {
		if err := j.Transition(next); err != nil {
			t.Fatalf("Transition(%s): %v", next, err)
		}
	}
	if j.Progress != 1 {
		t.Fatalf("expected finished job at full progress, got %v", j.Progress)
	}
	if j.StartedAt.IsZero() || j.FinishedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}
	if err := j.Transition(job.StatusError); err == nil {
		t.Fatal("finished job must not reach a second terminal state")
	}
}

func TestSetFailedCancelsThroughCanceling(t *testing.T) {
	j := newJob(t, "/out/a.txt")
	if err := j.Transition(job.StatusAudioConversion); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if err := j.SetFailed(job.StatusCanceled, "Canceled by user", ""); err != nil {
		t.Fatalf("SetFailed: %v", err)
	}
	if j.Status != job.StatusCanceled {
		t.Fatalf("expected canceled, got %s", j.Status)
	}

	waiting := newJob(t, "/out/b.txt")
	if err := waiting.SetFailed(job.StatusCanceled, "Canceled by user", ""); err != nil {
		t.Fatalf("waiting job should cancel directly: %v", err)
	}
}

func TestRepeatResetsFailedJob(t *testing.T) {
	j := newJob(t, "/out/a.txt")
	_ = j.Transition(job.StatusAudioConversion)
	j.SetProgress(0.4)
	j.PartialTranscript = true
	if err := j.SetFailed(job.StatusError, "worker crashed", "trace"); err != nil {
		t.Fatalf("SetFailed: %v", err)
	}
	if err := j.Repeat(); err != nil {
		t.Fatalf("Repeat: %v", err)
	}
	if j.Status != job.StatusWaiting || j.ErrorMessage != "" || j.ErrorTrace != "" {
		t.Fatalf("repeat did not clear error state: %+v", j)
	}
	if !j.StartedAt.IsZero() || !j.FinishedAt.IsZero() || j.Progress != 0 || j.PartialTranscript {
		t.Fatalf("repeat did not reset runtime fields: %+v", j)
	}
	if err := j.Repeat(); err == nil {
		t.Fatal("expected repeat on waiting job to fail")
	}
}

func TestSetProgressIsMonotonic(t *testing.T) {
	j := newJob(t, "/out/a.txt")
	j.SetProgress(0.3)
	j.SetProgress(0.2)
	if j.Progress != 0.3 {
		t.Fatalf("progress moved backwards: %v", j.Progress)
	}
	j.SetProgress(7)
	if j.Progress != 1 {
		t.Fatalf("progress not clamped: %v", j.Progress)
	}
}

func TestParseHelpers(t *testing.T) {
	lang, err := job.ParseLanguage("EN-us")
	if err != nil || lang.Mode != job.LanguageCode || lang.Code != "en" {
		t.Fatalf("unexpected language %+v err=%v", lang, err)
	}
	if lang, _ := job.ParseLanguage("Multilingual"); lang.Mode != job.LanguageMultilingual {
		t.Fatalf("unexpected language %+v", lang)
	}
	if _, err := job.ParseLanguage("not a language"); err == nil {
		t.Fatal("expected invalid language to fail")
	}

	diar, err := job.ParseDiarization("3")
	if err != nil || diar.Kind != job.DiarizationFixed || diar.Speakers != 3 {
		t.Fatalf("unexpected diarization %+v err=%v", diar, err)
	}
	if _, err := job.ParseDiarization("-1"); err == nil {
		t.Fatal("expected negative speaker count to fail")
	}

	tier, err := job.ParsePauseTier("2sec+")
	if err != nil || tier != 2 || tier.Threshold().Seconds() != 2 {
		t.Fatalf("unexpected pause tier %d err=%v", tier, err)
	}
	if _, err := job.ParsePauseTier("5"); err == nil {
		t.Fatal("expected out-of-range tier to fail")
	}

	if f, err := job.ParseFormat(".VTT"); err != nil || f != job.FormatVTT {
		t.Fatalf("unexpected format %q err=%v", f, err)
	}
}
