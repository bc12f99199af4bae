// Package runner executes the external provisioning tools (diskpart, dism,
// robocopy, bcdboot, bcdedit) and streams their output line by line.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Stream names attached to output events.
const (
	Stdout = "stdout"
	Stderr = "stderr"
)

// Event is a single line produced by a running command.
type Event struct {
	Stream string
	Line   string
}

// LineFunc receives output events as they arrive. Returning a non-nil error
// terminates the process and aborts the run with that error.
type LineFunc func(Event) error

// Runner abstracts external process execution so the pipeline can be tested
// without the real tools.
type Runner interface {
	// Run executes a command to completion and returns its combined output
	// and exit code. A non-zero exit is reported via the code, not the error;
	// the error is reserved for failures to run the command at all.
	Run(ctx context.Context, name string, args ...string) (string, int, error)

	// RunScript is Run with the given script fed to the command's stdin.
	// diskpart consumes its command list this way.
	RunScript(ctx context.Context, script, name string, args ...string) (string, int, error)

	// Stream executes a command, invoking fn for every stdout/stderr line.
	// Both streams are fully drained even when fn aborts or ctx is
	// cancelled; in either case the process is killed before returning.
	Stream(ctx context.Context, fn LineFunc, name string, args ...string) (int, error)
}

// Exec is the Runner backed by os/exec.
type Exec struct{}

var _ Runner = Exec{}

func (Exec) Run(ctx context.Context, name string, args ...string) (string, int, error) {
	return run(ctx, "", name, args)
}

func (Exec) RunScript(ctx context.Context, script, name string, args ...string) (string, int, error) {
	return run(ctx, script, name, args)
}

func run(ctx context.Context, stdin, name string, args []string) (string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(out), exitErr.ExitCode(), nil
		}
		return string(out), -1, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return string(out), 0, nil
}

func (Exec) Stream(ctx context.Context, fn LineFunc, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start %s: %w", name, err)
	}

	events := make(chan Event)
	var wg sync.WaitGroup
	wg.Add(2)
	go scanInto(events, &wg, Stdout, stdout)
	go scanInto(events, &wg, Stderr, stderr)
	go func() {
		wg.Wait()
		close(events)
	}()

	var abort error
	for ev := range events {
		if abort != nil {
			continue // keep draining after the kill
		}
		if err := ctx.Err(); err != nil {
			abort = err
		} else if err := fn(ev); err != nil {
			abort = err
		}
		if abort != nil {
			_ = cmd.Process.Kill()
		}
	}

	waitErr := cmd.Wait()
	if abort != nil {
		return -1, abort
	}
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("%s failed: %w", name, waitErr)
	}
	return 0, nil
}

func scanInto(events chan<- Event, wg *sync.WaitGroup, stream string, r io.Reader) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		events <- Event{Stream: stream, Line: line}
	}
}
