package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"scribe/internal/align"
	"scribe/internal/audio"
	"scribe/internal/fileutil"
	"scribe/internal/job"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/transcript"
)

// jobRun is the working state of one job while it is current.
type jobRun struct {
	job      job.Job
	ctx      context.Context
	logger   *slog.Logger
	jobLog   *logging.JobLog
	sampler  *logging.ProgressSampler
	canceled func() bool
	phase    job.Status

	audioPath  string
	info       audio.Info
	turns      []align.Turn
	names      map[string]string
	doc        *transcript.Document
	autosaver  *transcript.Autosaver
	cpuFailure bool
}

func (o *Orchestrator) newJobRun(ctx context.Context, id string) (*jobRun, error) {
	snapshot, ok := o.queue.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", job.ErrNotFound, id)
	}
	r := &jobRun{
		job:      snapshot,
		ctx:      ctx,
		logger:   o.logger.With(logging.String(logging.FieldJobID, id)),
		sampler:  logging.NewProgressSampler(0.05),
		canceled: o.canceled(ctx),
	}

	rotation := logging.Rotation{
		MaxSizeMB:  o.cfg.Logging.MaxSizeMB,
		MaxBackups: o.cfg.Logging.MaxBackups,
		MaxAgeDays: o.cfg.Logging.MaxAgeDays,
	}
	jobLog, err := logging.OpenJobLog(o.logger, o.cfg.JobLogDir(), id, rotation)
	if err != nil {
		logging.WarnWithContext(r.logger, "job log unavailable", "job_log_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on log_dir"),
			logging.String(logging.FieldImpact, "job output is only written to the main log"),
		)
	} else {
		r.jobLog = jobLog
		r.logger = jobLog.Logger
		_ = o.queue.Update(id, func(j *job.Job) error {
			j.LogPath = jobLog.Path
			return nil
		})
		r.job.LogPath = jobLog.Path
	}

	if o.queue.HasOutputConflict(snapshot.OutputPath, id) {
		logging.WarnWithContext(r.logger, "another queued job writes the same output file", "output_conflict",
			logging.String("output", snapshot.OutputPath),
			logging.String(logging.FieldErrorHint, "choose distinct output names"),
			logging.String(logging.FieldImpact, "a later job may save under a renamed file"),
		)
	}
	return r, nil
}

// phaseContext tags ctx with the job and phase for log correlation.
func (r *jobRun) phaseContext(status job.Status) context.Context {
	ctx := services.WithJobID(r.ctx, r.job.ID)
	return services.WithPhase(ctx, string(status))
}

func (r *jobRun) segments() int {
	if r.doc == nil {
		return 0
	}
	return r.doc.Segments()
}

// workerLog forwards a worker log line at its own level.
func (r *jobRun) workerLog(level, msg string) {
	attrs := []any{
		logging.String("worker_phase", string(r.phase)),
		logging.String(logging.FieldEventType, "worker_log"),
	}
	switch strings.ToLower(level) {
	case "error", "critical":
		r.logger.Error(msg, attrs...)
	case "warn", "warning":
		r.logger.Warn(msg, attrs...)
	case "info":
		r.logger.Info(msg, attrs...)
	default:
		r.logger.Debug(msg, attrs...)
	}
}

// close releases the job log and removes the prepared audio.
func (r *jobRun) close() {
	if r.audioPath != "" {
		if err := os.Remove(r.audioPath); err != nil && !os.IsNotExist(err) {
			r.logger.Debug("prepared audio not removed", logging.String("path", r.audioPath), logging.Error(err))
		}
	}
	if err := r.jobLog.Close(); err != nil {
		r.logger.Debug("job log close failed", logging.Error(err))
	}
}

// EmbeddingsPath is where the speaker embeddings of a job are stored, keyed
// by short speaker label.
func EmbeddingsPath(workDir, jobID string) string {
	return filepath.Join(workDir, "embeddings", jobID+".json")
}

// LoadEmbeddings reads a file written by a diarized job.
func LoadEmbeddings(path string) (map[string][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out map[string][]float64
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode embeddings %s: %w", path, err)
	}
	return out, nil
}

func (o *Orchestrator) saveEmbeddings(r *jobRun, embeddings map[string][]float64) {
	if len(embeddings) == 0 {
		return
	}
	byLabel := make(map[string][]float64, len(embeddings))
	for label, vec := range embeddings {
		byLabel[align.ShortLabel(label)] = vec
	}
	path := EmbeddingsPath(o.cfg.Paths.WorkDir, r.job.ID)
	data, err := json.Marshal(byLabel)
	if err == nil {
		if err = os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			err = fileutil.WriteFileAtomic(path, data, 0o644)
		}
	}
	if err != nil {
		logging.WarnWithContext(r.logger, "speaker embeddings not saved", "embeddings_save_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "speakers of this job cannot be added to the database"),
		)
		return
	}
	r.logger.Info("speaker embeddings saved",
		logging.String("path", path),
		logging.Int("speakers", len(byLabel)),
		logging.String(logging.FieldEventType, "embeddings_saved"),
	)
}
