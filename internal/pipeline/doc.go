// Package pipeline drives queued jobs through audio conversion, speaker
// identification, and transcription.
//
// One Orchestrator owns the queue's mutations. It takes the oldest waiting
// job, runs one phase handler per active status until the job reaches a
// terminal state, and moves on. Handlers return the next status; failure
// handling, progress, metrics, and per-job logs are centralised here so the
// handlers only describe the work of their phase.
//
// Heavy work runs in worker processes (see package worker). The orchestrator
// never blocks on them for longer than one poll interval, so both cancel
// scopes (the current job, or the current job plus everything waiting) take
// effect promptly.
package pipeline
