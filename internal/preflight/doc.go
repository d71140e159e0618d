// Package preflight provides readiness checks for external programs and
// filesystem paths that scribe depends on.
//
// These checks run in two contexts:
//   - The orchestrator calls ForJob before a job leaves the waiting state.
//     A failed check ends the job with a validation error instead of
//     spending minutes on a conversion whose transcript can never be saved.
//   - The CLI "scribe deps" command uses CheckSystemDeps to display the
//     availability of ffmpeg and the python launcher.
package preflight
