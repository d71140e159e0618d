package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"scribe/internal/fallback"
)

// terminalPrompter asks on the terminal whether a failed accelerated phase
// should switch to the CPU. Without a terminal every fallback is declined.
type terminalPrompter struct {
	mu          sync.Mutex
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

func newTerminalPrompter(in io.Reader, out io.Writer, interactive bool) *terminalPrompter {
	return &terminalPrompter{in: bufio.NewReader(in), out: out, interactive: interactive}
}

func (p *terminalPrompter) ConfirmCPUFallback(ctx context.Context, component fallback.Component, errText string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\nThe %s phase failed on the accelerator:\n  %s\n", component, firstLine(errText))
	if !p.interactive {
		fmt.Fprintln(p.out, "Not a terminal; set acceleration.auto_accept_cpu_fallback to retry on the CPU automatically.")
		return false, nil
	}
	fmt.Fprintf(p.out, "Run %s on the CPU from now on? This is saved to the config. [y/N] ", component)

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()
	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.line == "" {
			return false, a.err
		}
		reply := strings.ToLower(strings.TrimSpace(a.line))
		return reply == "y" || reply == "yes", nil
	}
}
