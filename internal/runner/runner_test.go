//go:build !windows

package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRun(t *testing.T) {
	t.Parallel()
	out, code, err := Exec{}.Run(context.Background(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello\n", out)
}

func TestExecRunNonZeroExit(t *testing.T) {
	t.Parallel()
	// A non-zero exit is a result, not an error.
	out, code, err := Exec{}.Run(context.Background(), "sh", "-c", "echo oops; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, "oops\n", out)
}

func TestExecRunMissingBinary(t *testing.T) {
	t.Parallel()
	_, code, err := Exec{}.Run(context.Background(), "definitely-not-a-real-tool")
	assert.Error(t, err)
	assert.Equal(t, -1, code)
}

func TestExecRunScriptFeedsStdin(t *testing.T) {
	t.Parallel()
	out, code, err := Exec{}.RunScript(context.Background(), "select disk 0\nclean", "cat")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "select disk 0\nclean", out)
}

func TestExecStream(t *testing.T) {
	t.Parallel()
	var events []Event
	code, err := Exec{}.Stream(context.Background(), func(ev Event) error {
		events = append(events, ev)
		return nil
	}, "sh", "-c", "echo out1; echo out2; echo err1 1>&2")

	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, events, Event{Stream: Stdout, Line: "out1"})
	assert.Contains(t, events, Event{Stream: Stdout, Line: "out2"})
	assert.Contains(t, events, Event{Stream: Stderr, Line: "err1"})
}

func TestExecStreamStripsCarriageReturns(t *testing.T) {
	t.Parallel()
	var lines []string
	_, err := Exec{}.Stream(context.Background(), func(ev Event) error {
		lines = append(lines, ev.Line)
		return nil
	}, "sh", "-c", `printf 'progress\r\n'`)

	require.NoError(t, err)
	require.Equal(t, []string{"progress"}, lines)
}

func TestExecStreamCallbackAborts(t *testing.T) {
	t.Parallel()
	boom := errors.New("stop now")
	code, err := Exec{}.Stream(context.Background(), func(Event) error {
		return boom
	}, "sh", "-c", "echo first; sleep 30; echo never")

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, -1, code)
}

func TestExecStreamCancellationKillsProcess(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	_, err := Exec{}.Stream(ctx, func(ev Event) error {
		cancel() // cancelled after the first line arrives
		return nil
	}, "sh", "-c", "echo first; sleep 30; echo never")

	assert.ErrorIs(t, err, context.Canceled)
}
