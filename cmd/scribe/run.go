package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"scribe/internal/api"
	"scribe/internal/audio"
	"scribe/internal/deps"
	"scribe/internal/fallback"
	"scribe/internal/job"
	"scribe/internal/logging"
	"scribe/internal/metrics"
	"scribe/internal/pipeline"
	"scribe/internal/preflight"
	"scribe/internal/prompts"
	"scribe/internal/worker"
)

// runQueue processes queue in the foreground, optionally alongside the
// status API, and prints a summary. It fails with exit code 1 when any job
// ended in error.
func runQueue(cmd *cobra.Command, ctx *commandContext, queue *job.Queue, serveAPI bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	if missing := deps.Missing(preflight.CheckSystemDeps(cfg)); len(missing) > 0 {
		parts := make([]string, 0, len(missing))
		for _, m := range missing {
			parts = append(parts, fmt.Sprintf("%s (%s)", m.Name, m.Detail))
		}
		return fmt.Errorf("missing dependencies: %s; run `scribe deps` for details", strings.Join(parts, ", "))
	}
	logging.PruneJobLogs(logger, cfg.JobLogDir(), cfg.Logging.MaxAgeDays)

	promptSet, err := prompts.Load(cfg.Transcription.PromptsFile)
	if err != nil {
		return err
	}
	m := metrics.New()
	stdin := cmd.InOrStdin()
	policy := fallback.NewPolicy(*cfg, newTerminalPrompter(stdin, cmd.ErrOrStderr(), isTerminal(stdin)),
		fallback.WithPersist(ctx.persist),
		fallback.WithLogger(logger),
	)
	depsSet := pipeline.Dependencies{
		Converter: audio.NewFFmpegConverter(*cfg, logger),
		Inspect:   audio.Inspect,
		Workers:   pipeline.LauncherStarter(worker.NewLauncher(*cfg, logger)),
		Fallback:  policy,
		Prompts:   promptSet,
		Metrics:   m,
	}
	if store, err := ctx.openSpeakers(); err != nil {
		logging.WarnWithContext(logger, "speaker database unavailable", "speaker_db_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.speaker_db"),
			logging.String(logging.FieldImpact, "speakers keep their numbered labels"),
		)
	} else {
		defer store.Close()
		depsSet.Speakers = store
	}

	orch := pipeline.New(*cfg, queue, depsSet, pipeline.WithLogger(logger), pipeline.WithVersion(version))

	runCtx, stop := context.WithCancel(cmd.Context())
	defer stop()
	stopSignals := watchInterrupts(runCtx, orch, logger)
	defer stopSignals()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer stop()
		return orch.Run(gctx)
	})
	if serveAPI {
		server := api.NewServer(cfg.Paths.APIBind, api.Options{
			Jobs:       queue,
			Controller: orch,
			Metrics:    m.Handler(),
			Logger:     logger,
		})
		g.Go(func() error { return server.Run(gctx) })
	}
	runErr := g.Wait()

	out := cmd.OutOrStdout()
	writeSummary(out, queue.Snapshot(), time.Now())
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if queue.Summary().Errors > 0 {
		return exitError{code: 1}
	}
	return nil
}

// watchInterrupts maps the first SIGINT to cancel-current and any further
// SIGINT, or a SIGTERM, to cancel-all.
func watchInterrupts(ctx context.Context, orch *pipeline.Orchestrator, logger *slog.Logger) func() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		interrupts := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case sig := <-sigs:
				interrupts++
				if sig == syscall.SIGTERM || interrupts > 1 {
					logger.Warn("interrupt: canceling all jobs", logging.String(logging.FieldEventType, "interrupt_cancel_all"))
					orch.CancelAll()
					continue
				}
				logger.Warn("interrupt: canceling the current job; press Ctrl+C again to cancel all",
					logging.String(logging.FieldEventType, "interrupt_cancel_current"))
				orch.CancelCurrent()
			}
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// writeSummary prints one row per job.
func writeSummary(out io.Writer, jobs []job.Job, now time.Time) {
	if len(jobs) == 0 {
		return
	}
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		output := j.OutputPath
		if j.PartialTranscript {
			output += " (partial)"
		}
		if j.Status != job.StatusFinished && !j.PartialTranscript {
			output = "-"
		}
		rows = append(rows, []string{
			j.Name(),
			statusText(out, j.Status),
			output,
			j.Elapsed(now).Round(time.Second).String(),
			firstLine(j.ErrorMessage),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Audio", "Status", "Transcript", "Elapsed", "Message"}, rows, 3))
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
