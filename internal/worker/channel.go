package worker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"scribe/internal/services"
)

const (
	messageBuffer      = 64
	maxLineBytes       = 32 << 20
	stderrDrainTimeout = 500 * time.Millisecond
)

// Handlers receive the non-terminal messages of a run. Nil handlers ignore
// their message kind. A non-nil error from VAD or Segment stops the worker and
// is returned from Run.
type Handlers struct {
	Log      func(level, msg string)
	Progress func(step string, pct float64, detail string)
	VAD      func(VAD) error
	Segment  func(Segment) error
}

// Channel is a running worker process and its message stream.
type Channel struct {
	ctx    context.Context
	entry  Entrypoint
	cmd    *exec.Cmd
	stdout *os.File
	errOut *os.File
	stderr *tailBuffer
	poll   time.Duration
	grace  time.Duration

	messages   chan Message
	stop       chan struct{}
	exited     chan struct{}
	drained    chan struct{}
	stderrDone chan struct{}

	exitCode int
	waitErr  error

	closeOnce   sync.Once
	releaseOnce sync.Once
}

// newChannel takes ownership of the read ends of the child's stdout and
// stderr pipes. The child must already be started.
func newChannel(ctx context.Context, entry Entrypoint, cmd *exec.Cmd, stdout, errOut *os.File, stderr *tailBuffer, poll, grace time.Duration) *Channel {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	if grace <= 0 {
		grace = 3 * time.Second
	}
	c := &Channel{
		ctx:        ctx,
		entry:      entry,
		cmd:        cmd,
		stdout:     stdout,
		errOut:     errOut,
		stderr:     stderr,
		poll:       poll,
		grace:      grace,
		messages:   make(chan Message, messageBuffer),
		stop:       make(chan struct{}),
		exited:     make(chan struct{}),
		drained:    make(chan struct{}),
		stderrDone: make(chan struct{}),
		exitCode:   -1,
	}
	go c.wait()
	go c.read()
	go c.copyStderr()
	return c
}

// wait reaps the child. It does not depend on the pipes reaching EOF, so a
// descendant holding them open cannot hide the exit.
func (c *Channel) wait() {
	c.waitErr = c.cmd.Wait()
	if c.cmd.ProcessState != nil {
		c.exitCode = c.cmd.ProcessState.ExitCode()
	}
	close(c.exited)
}

// read decodes stdout into the message channel. It keeps draining after
// Close so the child never blocks on a full pipe.
func (c *Channel) read() {
	defer close(c.drained)
	defer close(c.messages)
	scanner := bufio.NewScanner(c.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		msg, err := DecodeMessage(line)
		if err != nil {
			msg = Message{Type: KindLog, Level: "warn", Text: err.Error()}
		}
		select {
		case c.messages <- msg:
		case <-c.stop:
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		_, _ = io.Copy(io.Discard, c.stdout)
	}
}

func (c *Channel) copyStderr() {
	defer close(c.stderrDone)
	_, _ = io.Copy(c.stderr, c.errOut)
}

// Run dispatches messages until a result arrives. Between messages it polls
// canceled (and the launch context) every poll interval. A child that has
// exited and left the stream silent for two intervals counts as crashed, even
// when a descendant still holds its stdout.
func (c *Channel) Run(h Handlers, canceled func() bool) (Result, error) {
	timer := time.NewTimer(c.poll)
	defer timer.Stop()
	idleAfterExit := 0
	for {
		if c.cancelRequested(canceled) {
			_ = c.Close()
			return Result{}, services.Wrap(services.ErrCanceled, string(c.entry), "run", "worker stopped on request", nil)
		}
		timer.Reset(c.poll)
		select {
		case msg, ok := <-c.messages:
			if !ok {
				return Result{}, c.crashError()
			}
			idleAfterExit = 0
			if done, result, err := c.dispatch(h, msg); done {
				return result, err
			}
		case <-timer.C:
			if !c.Exited() || len(c.messages) > 0 {
				continue
			}
			idleAfterExit++
			if idleAfterExit >= 2 {
				return Result{}, c.crashError()
			}
		}
	}
}

func (c *Channel) dispatch(h Handlers, msg Message) (bool, Result, error) {
	switch msg.Type {
	case KindLog:
		if h.Log != nil {
			h.Log(msg.Level, msg.Text)
		}
	case KindProgress:
		if h.Progress != nil {
			h.Progress(msg.Step, msg.Pct, msg.Detail)
		}
	case KindVAD:
		if h.VAD != nil {
			if err := h.VAD(msg.VAD); err != nil {
				_ = c.Close()
				return true, Result{}, err
			}
		}
	case KindSegment:
		if h.Segment != nil {
			if err := h.Segment(msg.Segment); err != nil {
				_ = c.Close()
				return true, Result{}, err
			}
		}
	case KindResult:
		return true, msg.Result, nil
	}
	return false, Result{}, nil
}

func (c *Channel) cancelRequested(canceled func() bool) bool {
	if canceled != nil && canceled() {
		return true
	}
	return c.ctx != nil && c.ctx.Err() != nil
}

func (c *Channel) crashError() error {
	if !waitFor(c.exited, c.grace) {
		_ = signalGroup(c.cmd, unix.SIGKILL)
		<-c.exited
	}
	if !waitFor(c.stderrDone, stderrDrainTimeout) {
		c.release()
		<-c.stderrDone
	}
	c.release()
	message := fmt.Sprintf("worker terminated unexpectedly (exit code %d)", c.exitCode)
	err := services.Wrap(services.ErrWorkerCrash, string(c.entry), "run", message, c.waitErr)
	return services.WithTrace(err, c.stderr.String())
}

// release runs once the child is reaped. It kills any descendants still in
// the process group when they hold the pipes open, then closes the read
// ends so the reader goroutines finish.
func (c *Channel) release() {
	c.releaseOnce.Do(func() {
		if !closed(c.drained) || !closed(c.stderrDone) {
			_ = signalGroup(c.cmd, unix.SIGKILL)
		}
		_ = c.stdout.Close()
		_ = c.errOut.Close()
	})
}

// Close terminates the worker's process group: SIGTERM, a bounded wait,
// then SIGKILL. It is safe to call more than once.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
		if !closed(c.exited) {
			_ = signalGroup(c.cmd, unix.SIGTERM)
			if !waitFor(c.exited, c.grace) {
				_ = signalGroup(c.cmd, unix.SIGKILL)
				waitFor(c.exited, c.grace)
			}
		}
		if closed(c.exited) {
			c.release()
		}
	})
	return nil
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func waitFor(ch <-chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}

// Entrypoint reports which script this channel runs.
func (c *Channel) Entrypoint() Entrypoint { return c.entry }

// Exited reports whether the child has been reaped.
func (c *Channel) Exited() bool { return closed(c.exited) }

// ExitCode is the child's exit status, or -1 while it is running.
func (c *Channel) ExitCode() int {
	if !c.Exited() {
		return -1
	}
	return c.exitCode
}

// StderrTail returns the last lines the child wrote to stderr.
func (c *Channel) StderrTail() string { return c.stderr.String() }
