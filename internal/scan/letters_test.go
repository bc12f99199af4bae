package scan

import (
	"context"
	"strings"
	"testing"

	"github.com/kdic/reimage/internal/diskpart"
	"github.com/kdic/reimage/internal/logger"
	"github.com/kdic/reimage/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignTempLettersHandsOutFromZDown(t *testing.T) {
	t.Parallel()
	fake := &runner.Fake{}
	dp := diskpart.NewClient(fake, "diskpart")

	a := &diskpart.Volume{Index: 1}
	b := &diskpart.Volume{Index: 2}
	disks := []*diskpart.Disk{{Index: 0, Volumes: []*diskpart.Volume{
		{Index: 0, Letter: "C"}, a, b,
	}}}

	require.NoError(t, AssignTempLetters(context.Background(), dp, disks, logger.Nop()))
	assert.Equal(t, "Z", a.Letter)
	assert.Equal(t, "Y", b.Letter)
	require.Len(t, fake.Calls, 2)
	assert.Contains(t, fake.Calls[0].Script, "assign letter=Z")
	assert.Contains(t, fake.Calls[1].Script, "assign letter=Y")
}

func TestAssignTempLettersSkipsUsedLetters(t *testing.T) {
	t.Parallel()
	fake := &runner.Fake{}
	dp := diskpart.NewClient(fake, "diskpart")

	v := &diskpart.Volume{Index: 1}
	disks := []*diskpart.Disk{{Index: 0, Volumes: []*diskpart.Volume{
		{Index: 0, Letter: "Z"}, v,
	}}}

	require.NoError(t, AssignTempLetters(context.Background(), dp, disks, logger.Nop()))
	assert.Equal(t, "Y", v.Letter)
}

func TestAssignTempLettersReusesLetterAfterFailure(t *testing.T) {
	t.Parallel()
	failures := 0
	fake := &runner.Fake{Handle: func(c runner.Call) runner.Response {
		if failures == 0 && strings.Contains(c.Script, "assign letter=Z") {
			failures++
			return runner.Response{ExitCode: 1, Output: "The volume is offline."}
		}
		return runner.Response{}
	}}
	dp := diskpart.NewClient(fake, "diskpart")

	a := &diskpart.Volume{Index: 0}
	b := &diskpart.Volume{Index: 1}
	disks := []*diskpart.Disk{{Index: 0, Volumes: []*diskpart.Volume{a, b}}}

	require.NoError(t, AssignTempLetters(context.Background(), dp, disks, logger.Nop()))
	assert.Equal(t, "", a.Letter, "failed assignment leaves the volume unlettered")
	assert.Equal(t, "Z", b.Letter, "the letter returns to the pool")
}

func TestAssignTempLettersHonoursCancellation(t *testing.T) {
	t.Parallel()
	fake := &runner.Fake{}
	dp := diskpart.NewClient(fake, "diskpart")
	disks := []*diskpart.Disk{{Index: 0, Volumes: []*diskpart.Volume{{Index: 0}}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := AssignTempLetters(ctx, dp, disks, logger.Nop())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.Calls)
}
