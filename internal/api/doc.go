// Package api exposes the job queue over a local HTTP status API. It
// translates queue jobs into transport-friendly DTOs that scripts and
// dashboards can render without coupling to internal types.
//
// # Routes
//
//	GET  /health         liveness and queue counts
//	GET  /api/jobs       all jobs in insertion order plus a summary
//	GET  /api/jobs/:id   a single job including its error trace
//	POST /api/cancel     cancel the current job or all jobs
//	GET  /metrics        Prometheus exposition
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Statuses are exposed as their lowercase
// names together with a display label. Timestamps use RFC3339 with
// milliseconds. Progress is reported as a percentage.
package api
