package pipeline

import (
	"context"

	"scribe/internal/audio"
	"scribe/internal/fallback"
	"scribe/internal/metrics"
	"scribe/internal/prompts"
	"scribe/internal/speakerdb"
	"scribe/internal/worker"
)

// Converter prepares the audio artifact the workers read.
type Converter interface {
	Convert(ctx context.Context, req audio.Request, canceled func() bool) error
}

// WorkerRun is a started worker process.
type WorkerRun interface {
	Run(h worker.Handlers, canceled func() bool) (worker.Result, error)
	Close() error
}

// WorkerStarter launches worker processes.
type WorkerStarter interface {
	Start(ctx context.Context, entry worker.Entrypoint, args any) (WorkerRun, error)
}

// SpeakerMatcher maps diarization labels to known speaker names.
type SpeakerMatcher interface {
	Identify(ctx context.Context, embeddings map[string][]float64, threshold float64) (map[string]speakerdb.Match, error)
}

// Dependencies are the collaborators the orchestrator drives. Speakers and
// Metrics are optional.
type Dependencies struct {
	Converter Converter
	Inspect   func(path string) (audio.Info, error)
	Workers   WorkerStarter
	Speakers  SpeakerMatcher
	Fallback  *fallback.Policy
	Prompts   prompts.Set
	Metrics   *metrics.Metrics
}

// LauncherStarter adapts a worker.Launcher to WorkerStarter.
func LauncherStarter(l *worker.Launcher) WorkerStarter {
	return launcherStarter{l: l}
}

type launcherStarter struct {
	l *worker.Launcher
}

func (s launcherStarter) Start(ctx context.Context, entry worker.Entrypoint, args any) (WorkerRun, error) {
	ch, err := s.l.Start(ctx, entry, args)
	if err != nil {
		return nil, err
	}
	return ch, nil
}
