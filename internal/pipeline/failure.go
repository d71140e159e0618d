package pipeline

import (
	"strings"

	"scribe/internal/fallback"
	"scribe/internal/job"
	"scribe/internal/logging"
	"scribe/internal/services"
)

func canceledError(status job.Status) error {
	return services.Wrap(services.ErrCanceled, string(status), "cancel", "canceled by user", nil)
}

// componentFor names the accelerated component running in status.
func componentFor(status job.Status) string {
	switch status {
	case job.StatusSpeakerIdentification:
		return string(fallback.Diarization)
	case job.StatusTranscription:
		return string(fallback.Transcription)
	default:
		return string(status)
	}
}

// fail records a terminal failure. Whatever was transcribed so far is saved
// first so the partial flag is set on the job before it ends.
func (o *Orchestrator) fail(r *jobRun, id string, err error) {
	logger := o.logger.With(logging.String(logging.FieldJobID, id))
	phase := job.Status("")
	if r != nil {
		logger = r.logger
		phase = r.phase
	}

	status := services.FailureStatus(err)
	if status == job.StatusError && r != nil && r.canceled() {
		status = job.StatusCanceled
	}

	if r != nil && r.autosaver != nil {
		if saved, saveErr := r.autosaver.SavePartial(); saveErr != nil {
			logging.WarnWithContext(logger, "partial transcript not saved", "partial_save_failed",
				logging.Error(saveErr),
				logging.String(logging.FieldImpact, "segments transcribed before the failure are lost"),
			)
		} else if saved {
			logger.Info("partial transcript saved",
				logging.String("path", r.autosaver.Path()),
				logging.Int("segments", r.segments()),
				logging.String(logging.FieldEventType, "partial_saved"),
			)
		}
	}

	details := services.Details(err)
	message := strings.TrimSpace(details.Message)
	if status == job.StatusCanceled {
		message = "canceled by user"
	} else if r != nil && r.cpuFailure {
		message = fallback.MarkCPU(message)
	}

	if updateErr := o.queue.Update(id, func(j *job.Job) error {
		return j.SetFailed(status, message, details.Trace)
	}); updateErr != nil {
		logger.Error("failed to record job failure", logging.Error(updateErr))
	}
	o.deps.Metrics.JobCompleted(status)
	if details.Kind == services.KindWorkerCrash {
		o.deps.Metrics.WorkerCrash(componentFor(phase))
	}

	if status == job.StatusCanceled {
		logger.Info("job canceled",
			logging.String(logging.FieldPhase, string(phase)),
			logging.String(logging.FieldEventType, "job_canceled"),
		)
		return
	}
	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.String(logging.FieldPhase, string(phase)),
		logging.String("error_kind", string(details.Kind)),
		logging.String("error_message", message),
		logging.String("error_operation", details.Operation),
		logging.Error(err),
		logging.Alert("job_failure"),
	)
}
