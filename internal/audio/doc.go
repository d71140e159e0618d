// Package audio prepares source recordings for the workers.
//
// FFmpegConverter turns any input ffmpeg understands into a mono 16kHz
// 16-bit PCM WAV, trimmed to the job's time range, while polling for
// cancellation. Inspect reads the resulting artifact's header so the
// pipeline can reject malformed output before handing it to a worker.
package audio
