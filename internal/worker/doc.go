// Package worker launches the isolated speech workers and speaks their
// line-oriented JSON protocol.
//
// A worker is a child process started in its own process group. Arguments go
// in as a single JSON document on stdin; log, progress, VAD, segment, and
// result messages come back as JSON lines on stdout. Channel.Run dispatches
// those messages in order and turns silence plus a dead child into a crash
// error, while Channel.Close tears the whole process group down with a bounded
// grace period.
package worker
