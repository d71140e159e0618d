// Package main hosts the scribe CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into queued transcription
// jobs, drives the pipeline orchestrator in the foreground, and exposes the
// speaker database, configuration scaffolding, and dependency checks. Heavy
// lifting lives in the internal packages; commands here only wire them.
package main
