package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/services"
)

const (
	phase = "audio_conversion"

	// TargetSampleRate is the rate both workers expect.
	TargetSampleRate = 16000

	stderrLimit = 16 * 1024
)

var commandContext = exec.CommandContext

// Request describes one conversion. StopMS of zero converts to the end.
type Request struct {
	Source  string
	Target  string
	StartMS int64
	StopMS  int64
}

// FFmpegConverter runs ffmpeg to produce the prepared artifact.
type FFmpegConverter struct {
	binary string
	poll   time.Duration
	logger *slog.Logger
}

// NewFFmpegConverter builds a converter from cfg.
func NewFFmpegConverter(cfg config.Config, logger *slog.Logger) *FFmpegConverter {
	binary := strings.TrimSpace(cfg.Audio.FFmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegConverter{
		binary: binary,
		poll:   cfg.PollInterval(),
		logger: logging.NewComponentLogger(logger, "audio"),
	}
}

// Args returns the ffmpeg arguments for req.
func (c *FFmpegConverter) Args(req Request) []string {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-ss", seconds(req.StartMS),
	}
	if req.StopMS > 0 {
		args = append(args, "-to", seconds(req.StopMS))
	}
	return append(args,
		"-i", req.Source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(TargetSampleRate),
		"-c:a", "pcm_s16le",
		req.Target,
	)
}

// Convert runs ffmpeg for req. It checks canceled on every poll tick and
// kills the process when it reports true or ctx ends; the partial target is
// removed in that case.
func (c *FFmpegConverter) Convert(ctx context.Context, req Request, canceled func() bool) error {
	if strings.TrimSpace(req.Source) == "" || strings.TrimSpace(req.Target) == "" {
		return services.Wrap(services.ErrValidation, phase, "convert", "source and target required", nil)
	}
	if _, err := os.Stat(req.Source); err != nil {
		return services.Wrap(services.ErrValidation, phase, "convert", "audio file not readable", err)
	}
	if canceled == nil {
		canceled = func() bool { return false }
	}

	args := c.Args(req)
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stderr := &limitedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	c.logger.Debug("starting audio conversion",
		logging.String("binary", c.binary),
		logging.String("args", strings.Join(args, " ")),
		logging.String(logging.FieldEventType, "audio_conversion_start"),
	)
	started := time.Now()
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, phase, "start ffmpeg", "could not start "+c.binary, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			if ctx.Err() != nil {
				_ = os.Remove(req.Target)
				return services.Wrap(services.ErrCanceled, phase, "convert", "audio conversion canceled", ctx.Err())
			}
			if err != nil {
				return c.failure(err, stderr.String())
			}
			c.logger.Debug("audio conversion finished",
				logging.Duration("elapsed", time.Since(started)),
				logging.String(logging.FieldEventType, "audio_conversion_done"),
			)
			return nil
		case <-ticker.C:
			if !canceled() {
				continue
			}
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
			<-done
			_ = os.Remove(req.Target)
			return services.Wrap(services.ErrCanceled, phase, "convert", "audio conversion canceled", nil)
		}
	}
}

func (c *FFmpegConverter) failure(err error, stderr string) error {
	message := "ffmpeg failed"
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		message = fmt.Sprintf("ffmpeg exited with code %d", exitErr.ExitCode())
	}
	if line := lastLine(stderr); line != "" {
		message += ": " + line
	}
	return services.WithTrace(services.Wrap(services.ErrExternalTool, phase, "convert", message, err), stderr)
}

func seconds(ms int64) string {
	return strconv.FormatFloat(float64(max(ms, 0))/1000, 'f', 3, 64)
}

func lastLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// limitedBuffer keeps the most recent limit bytes written to it.
type limitedBuffer struct {
	limit int
	data  []byte
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if over := len(b.data) - b.limit; over > 0 {
		b.data = b.data[over:]
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return string(b.data)
}
