// Package services defines shared utilities consumed by the pipeline phases
// and the worker integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, phase names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent job statuses (error vs canceled).
//   - Details extraction so a failed job can carry a short message for the
//     user and a technical trace for its log artifact.
//
// Use these helpers when wiring new phase logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
