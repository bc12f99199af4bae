package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kdic/reimage/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wmicOutput = "Product\n10M50Scmn\n\n"

func TestBaseboardProduct(t *testing.T) {
	t.Parallel()
	fake := &runner.Fake{Handle: func(c runner.Call) runner.Response {
		return runner.Response{Output: wmicOutput}
	}}

	product, err := BaseboardProduct(context.Background(), fake, "wmic")
	require.NoError(t, err)
	assert.Equal(t, "10M50Scmn", product)
	require.Len(t, fake.Calls, 1)
	assert.Equal(t, "wmic baseboard get product", fake.Calls[0].CommandLine())
}

func TestBaseboardProductEmptyOutput(t *testing.T) {
	t.Parallel()
	fake := &runner.Fake{Handle: func(runner.Call) runner.Response {
		return runner.Response{Output: "Product\n\n"}
	}}
	_, err := BaseboardProduct(context.Background(), fake, "wmic")
	assert.Error(t, err)
}

func TestResolveDriverPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "10m50scmn_v2"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "OtherBoard"), 0755))

	fake := &runner.Fake{Handle: func(runner.Call) runner.Response {
		return runner.Response{Output: wmicOutput}
	}}

	path, err := ResolveDriverPath(context.Background(), fake, "wmic", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "10m50scmn_v2"), path)
}

func TestResolveDriverPathSanitizesProduct(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "ABC123"), 0755))

	fake := &runner.Fake{Handle: func(runner.Call) runner.Response {
		return runner.Response{Output: "Product\nABC/123?\n"}
	}}

	path, err := ResolveDriverPath(context.Background(), fake, "wmic", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ABC123"), path)
}

func TestResolveDriverPathNoMatch(t *testing.T) {
	t.Parallel()
	fake := &runner.Fake{Handle: func(runner.Call) runner.Response {
		return runner.Response{Output: wmicOutput}
	}}
	_, err := ResolveDriverPath(context.Background(), fake, "wmic", t.TempDir())
	assert.ErrorContains(t, err, "no driver folder")
}
