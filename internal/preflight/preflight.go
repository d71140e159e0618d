package preflight

import (
	"strings"

	"scribe/internal/config"
	"scribe/internal/job"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// ForJob executes the checks that apply to j. Diarization access is only
// checked when the job identifies speakers.
func ForJob(cfg *config.Config, j job.Job) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckAudioReadable(j.AudioPath),
		CheckOutputWritable(j.OutputPath),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
	}
	if j.Diarization.Enabled() {
		results = append(results, CheckDiarizationAccess(cfg.Diarization))
	}
	return results
}

// Failures returns the checks that did not pass.
func Failures(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// Summary renders failed checks as "name: detail" joined by "; ".
func Summary(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range Failures(results) {
		parts = append(parts, r.Name+": "+r.Detail)
	}
	return strings.Join(parts, "; ")
}
