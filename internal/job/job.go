package job

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// Format is the output artifact format, derived from the output extension.
type Format string

const (
	FormatHTML Format = "html"
	FormatText Format = "txt"
	FormatVTT  Format = "vtt"
)

// ParseFormat maps a format name or file extension to a Format.
func ParseFormat(value string) (Format, error) {
	v := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), "."))
	switch v {
	case "html", "htm":
		return FormatHTML, nil
	case "txt", "text":
		return FormatText, nil
	case "vtt", "webvtt":
		return FormatVTT, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", value)
	}
}

// Extension returns the file extension (with dot) for the format.
func (f Format) Extension() string {
	return "." + string(f)
}

// LanguageMode selects how the transcription language is chosen.
type LanguageMode string

const (
	LanguageAuto         LanguageMode = "auto"
	LanguageMultilingual LanguageMode = "multilingual"
	LanguageCode         LanguageMode = "code"
)

// LanguageSelector is auto detection, multilingual mode, or a fixed code.
type LanguageSelector struct {
	Mode LanguageMode
	Code string
}

// ParseLanguage accepts "auto", "multilingual", or a BCP 47 tag such as "de"
// or "en-US". Tags are reduced to their base language.
func ParseLanguage(value string) (LanguageSelector, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "", "auto":
		return LanguageSelector{Mode: LanguageAuto}, nil
	case "multilingual", "multi":
		return LanguageSelector{Mode: LanguageMultilingual}, nil
	}
	tag, err := language.Parse(v)
	if err != nil {
		return LanguageSelector{}, fmt.Errorf("language %q: %w", value, err)
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return LanguageSelector{}, fmt.Errorf("language %q: unknown base language", value)
	}
	return LanguageSelector{Mode: LanguageCode, Code: base.String()}, nil
}

func (l LanguageSelector) String() string {
	if l.Mode == LanguageCode {
		return l.Code
	}
	if l.Mode == "" {
		return string(LanguageAuto)
	}
	return string(l.Mode)
}

// DiarizationKind selects whether and how speakers are identified.
type DiarizationKind string

const (
	DiarizationNone  DiarizationKind = "none"
	DiarizationAuto  DiarizationKind = "auto"
	DiarizationFixed DiarizationKind = "fixed"
)

// DiarizationMode is none, auto, or a fixed speaker count.
type DiarizationMode struct {
	Kind     DiarizationKind
	Speakers int
}

// ParseDiarization accepts "none", "auto", or a positive speaker count.
func ParseDiarization(value string) (DiarizationMode, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "", "none", "off":
		return DiarizationMode{Kind: DiarizationNone}, nil
	case "auto":
		return DiarizationMode{Kind: DiarizationAuto}, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return DiarizationMode{}, fmt.Errorf("speaker detection %q: want none, auto, or a positive count", value)
	}
	return DiarizationMode{Kind: DiarizationFixed, Speakers: n}, nil
}

// Enabled reports whether the speaker identification phase runs.
func (d DiarizationMode) Enabled() bool {
	return d.Kind == DiarizationAuto || d.Kind == DiarizationFixed
}

func (d DiarizationMode) String() string {
	if d.Kind == DiarizationFixed {
		return strconv.Itoa(d.Speakers)
	}
	if d.Kind == "" {
		return string(DiarizationNone)
	}
	return string(d.Kind)
}

// PauseTier is the minimum silence, in whole seconds, that gets annotated.
// Zero disables pause marking.
type PauseTier int

const maxPauseTier PauseTier = 3

// ParsePauseTier accepts "none" or 1..3 (optionally suffixed with "s" or "sec+").
func ParsePauseTier(value string) (PauseTier, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" || v == "none" || v == "0" {
		return 0, nil
	}
	v = strings.TrimSuffix(v, "+")
	v = strings.TrimSuffix(v, "sec")
	v = strings.TrimSuffix(v, "s")
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || PauseTier(n) > maxPauseTier {
		return 0, fmt.Errorf("pause tier %q: want none, 1, 2, or 3", value)
	}
	return PauseTier(n), nil
}

// Threshold returns the pause length that triggers an annotation.
func (p PauseTier) Threshold() time.Duration {
	return time.Duration(p) * time.Second
}

// Request describes a job submitted by the user.
type Request struct {
	AudioPath    string
	OutputPath   string
	Format       Format
	StartMS      int64
	StopMS       int64
	Language     LanguageSelector
	Model        string
	Diarization  DiarizationMode
	MarkOverlap  bool
	Timestamps   bool
	Disfluencies bool
	Pause        PauseTier
}

// Job is a single transcription request and its runtime state.
type Job struct {
	ID           string
	AudioPath    string
	OutputPath   string
	Format       Format
	StartMS      int64
	StopMS       int64 // zero means until the end of the audio
	Language     LanguageSelector
	Model        string
	Diarization  DiarizationMode
	MarkOverlap  bool
	Timestamps   bool
	Disfluencies bool
	Pause        PauseTier

	Status            Status
	Progress          float64
	CreatedAt         time.Time
	StartedAt         time.Time
	FinishedAt        time.Time
	ErrorMessage      string
	ErrorTrace        string
	PartialTranscript bool
	LogPath           string
}

// New validates a request and creates a waiting job. The vtt format carries
// no pause, overlap, or timestamp decorations, so those options are forced off.
func New(req Request) (*Job, error) {
	audio := strings.TrimSpace(req.AudioPath)
	if audio == "" {
		return nil, errors.New("audio path required")
	}
	output := strings.TrimSpace(req.OutputPath)
	if output == "" {
		return nil, errors.New("output path required")
	}
	format := req.Format
	if format == "" {
		parsed, err := ParseFormat(filepath.Ext(output))
		if err != nil {
			return nil, err
		}
		format = parsed
	}
	if req.StartMS < 0 || req.StopMS < 0 {
		return nil, errors.New("start and stop must not be negative")
	}
	if req.StopMS > 0 && req.StopMS <= req.StartMS {
		return nil, fmt.Errorf("stop (%d ms) must be after start (%d ms)", req.StopMS, req.StartMS)
	}
	if req.Pause < 0 || req.Pause > maxPauseTier {
		return nil, fmt.Errorf("pause tier %d out of range", req.Pause)
	}
	if req.Diarization.Kind == DiarizationFixed && req.Diarization.Speakers <= 0 {
		return nil, errors.New("fixed speaker count must be positive")
	}
	lang := req.Language
	if lang.Mode == "" {
		lang.Mode = LanguageAuto
	}
	diar := req.Diarization
	if diar.Kind == "" {
		diar.Kind = DiarizationNone
	}

	j := &Job{
		ID:           uuid.NewString(),
		AudioPath:    audio,
		OutputPath:   output,
		Format:       format,
		StartMS:      req.StartMS,
		StopMS:       req.StopMS,
		Language:     lang,
		Model:        strings.TrimSpace(req.Model),
		Diarization:  diar,
		MarkOverlap:  req.MarkOverlap,
		Timestamps:   req.Timestamps,
		Disfluencies: req.Disfluencies,
		Pause:        req.Pause,
		Status:       StatusWaiting,
		CreatedAt:    time.Now().UTC(),
	}
	if j.Format == FormatVTT {
		j.Pause = 0
		j.MarkOverlap = false
		j.Timestamps = false
	}
	return j, nil
}

// Transition moves the job to the next status if the edge exists.
func (j *Job) Transition(to Status) error {
	if !CanTransition(j.Status, to) {
		return transitionError(j.Status, to)
	}
	now := time.Now().UTC()
	if j.Status == StatusWaiting && to == StatusAudioConversion {
		j.StartedAt = now
	}
	j.Status = to
	if to.IsTerminal() {
		j.FinishedAt = now
		if to == StatusFinished {
			j.Progress = 1
		}
	}
	return nil
}

// SetProgress records overall progress; progress never moves backwards.
func (j *Job) SetProgress(value float64) {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	if value > j.Progress {
		j.Progress = value
	}
}

// SetFailed records a terminal failure with its user-facing message and trace.
func (j *Job) SetFailed(status Status, message, trace string) error {
	if status != StatusError && status != StatusCanceled {
		return fmt.Errorf("%s is not a failure status", status)
	}
	if status == StatusCanceled && j.Status.IsActive() && j.Status != StatusCanceling {
		if err := j.Transition(StatusCanceling); err != nil {
			return err
		}
	}
	if err := j.Transition(status); err != nil {
		return err
	}
	j.ErrorMessage = strings.TrimSpace(message)
	j.ErrorTrace = strings.TrimSpace(trace)
	return nil
}

// Repeat resets an errored or canceled job so it runs again.
func (j *Job) Repeat() error {
	if j.Status != StatusError && j.Status != StatusCanceled {
		return fmt.Errorf("repeat: job %s is %s", j.ID, j.Status)
	}
	if err := j.Transition(StatusWaiting); err != nil {
		return err
	}
	j.ErrorMessage = ""
	j.ErrorTrace = ""
	j.StartedAt = time.Time{}
	j.FinishedAt = time.Time{}
	j.Progress = 0
	j.PartialTranscript = false
	return nil
}

// Name returns the audio file name used in logs and tables.
func (j *Job) Name() string {
	return filepath.Base(j.AudioPath)
}

// Elapsed reports how long the job ran (or has been running).
func (j *Job) Elapsed(now time.Time) time.Duration {
	if j.StartedAt.IsZero() {
		return 0
	}
	end := j.FinishedAt
	if end.IsZero() {
		end = now
	}
	return end.Sub(j.StartedAt)
}
