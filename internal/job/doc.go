// Package job models transcription jobs and the in-memory queue that holds
// them.
//
// A Job moves through an explicit state machine (see transitions.go): waiting,
// audio conversion, optional speaker identification, transcription, and one of
// the terminal states finished, error, or canceled. Only the repeat action
// leaves a terminal state. The Queue keeps jobs in insertion order and offers
// the filtered views, FIFO selection, and summaries the pipeline and the
// reporting surfaces (CLI, status API) rely on.
//
// Jobs are mutated only by the pipeline orchestrator through Queue.Update;
// readers take copies through Snapshot/Get so they never race with it.
package job
