package runner

import (
	"context"
	"strings"
)

// Call records one invocation made against a Fake.
type Call struct {
	Name   string
	Args   []string
	Script string
}

// Response is what a Fake hands back for one invocation.
type Response struct {
	Output   string
	Lines    []Event
	ExitCode int
	Err      error
}

// Fake is a scripted Runner for tests. Handle receives every call; when nil,
// all commands succeed with empty output.
type Fake struct {
	Handle func(Call) Response
	Calls  []Call
}

var _ Runner = (*Fake)(nil)

func (f *Fake) respond(c Call) Response {
	f.Calls = append(f.Calls, c)
	if f.Handle == nil {
		return Response{}
	}
	return f.Handle(c)
}

func (f *Fake) Run(_ context.Context, name string, args ...string) (string, int, error) {
	r := f.respond(Call{Name: name, Args: args})
	return r.Output, r.ExitCode, r.Err
}

func (f *Fake) RunScript(_ context.Context, script, name string, args ...string) (string, int, error) {
	r := f.respond(Call{Name: name, Args: args, Script: script})
	return r.Output, r.ExitCode, r.Err
}

func (f *Fake) Stream(ctx context.Context, fn LineFunc, name string, args ...string) (int, error) {
	r := f.respond(Call{Name: name, Args: args})
	if r.Err != nil {
		return -1, r.Err
	}
	lines := r.Lines
	if lines == nil && r.Output != "" {
		for _, l := range strings.Split(strings.TrimRight(r.Output, "\n"), "\n") {
			lines = append(lines, Event{Stream: Stdout, Line: l})
		}
	}
	for _, ev := range lines {
		if err := ctx.Err(); err != nil {
			return -1, err
		}
		if err := fn(ev); err != nil {
			return -1, err
		}
	}
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	return r.ExitCode, nil
}

// CommandLine renders a recorded call for assertion convenience.
func (c Call) CommandLine() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}
