package api

import (
	"math"
	"time"

	"scribe/internal/job"
)

// FromJob converts a queue job to its API representation. The error trace is
// only included when withTrace is set.
func FromJob(j job.Job, now time.Time, withTrace bool) Job {
	dto := Job{
		ID:                j.ID,
		Name:              j.Name(),
		AudioPath:         j.AudioPath,
		OutputPath:        j.OutputPath,
		Format:            string(j.Format),
		Status:            string(j.Status),
		StatusLabel:       j.Status.Label(),
		Percent:           math.Round(j.Progress*1000) / 10,
		Language:          j.Language.String(),
		Model:             j.Model,
		Speakers:          j.Diarization.String(),
		StartMS:           j.StartMS,
		StopMS:            j.StopMS,
		ElapsedSeconds:    math.Round(j.Elapsed(now).Seconds()*10) / 10,
		ErrorMessage:      j.ErrorMessage,
		PartialTranscript: j.PartialTranscript,
		LogPath:           j.LogPath,
	}
	if withTrace {
		dto.ErrorTrace = j.ErrorTrace
	}
	dto.CreatedAt = formatTime(j.CreatedAt)
	dto.StartedAt = formatTime(j.StartedAt)
	dto.FinishedAt = formatTime(j.FinishedAt)
	return dto
}

// FromJobs converts a queue snapshot into API DTOs, preserving order.
func FromJobs(jobs []job.Job, now time.Time) []Job {
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, FromJob(j, now, false))
	}
	return out
}

// FromSummary converts queue counts to the API form.
func FromSummary(s job.Summary) Summary {
	byStatus := make(map[string]int, len(s.ByStatus))
	for status, count := range s.ByStatus {
		byStatus[string(status)] = count
	}
	return Summary{
		Total:    s.Total,
		Waiting:  s.Waiting,
		Running:  s.Running,
		Finished: s.Finished,
		Errors:   s.Errors,
		Canceled: s.Canceled,
		ByStatus: byStatus,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
