// Package config loads, normalizes, and validates scribe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// HF_TOKEN and SCRIBE_FFMPEG. The Config type centralizes every knob the
// pipeline and CLI need: worker launch settings, transcription defaults, the
// acceleration fallback flags, and log output.
//
// Config is handed to the pipeline by value so a running queue never observes
// a half-applied change. The few flags that are written back at runtime (the
// CPU fallback latch) go through Persist, which re-reads the file under a lock
// and rewrites it atomically.
package config
