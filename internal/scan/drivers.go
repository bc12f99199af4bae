package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kdic/reimage/internal/runner"
)

var unsafeNameChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// BaseboardProduct queries the baseboard model name, used to pick the
// matching driver package.
func BaseboardProduct(ctx context.Context, r runner.Runner, wmic string) (string, error) {
	out, code, err := r.Run(ctx, wmic, "baseboard", "get", "product")
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", fmt.Errorf("%s exited with code %d: %s", wmic, code, strings.TrimSpace(out))
	}

	// Output is a "Product" header followed by the value.
	for _, line := range strings.Split(out, "\n")[1:] {
		if v := strings.TrimSpace(line); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("baseboard product name not reported")
}

// ResolveDriverPath locates the driver package for this machine: the first
// subdirectory of driversDir whose name starts with the sanitized baseboard
// product name, case-insensitively.
func ResolveDriverPath(ctx context.Context, r runner.Runner, wmic, driversDir string) (string, error) {
	product, err := BaseboardProduct(ctx, r, wmic)
	if err != nil {
		return "", fmt.Errorf("failed to read baseboard model: %w", err)
	}
	prefix := strings.TrimSpace(unsafeNameChars.ReplaceAllString(product, ""))

	path, err := findByPrefix(driversDir, prefix)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("no driver folder starting with %q under %s", prefix, driversDir)
	}
	return path, nil
}

func findByPrefix(base, prefix string) (string, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", fmt.Errorf("failed to read driver directory %s: %w", base, err)
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(strings.ToLower(e.Name()), strings.ToLower(prefix)) {
			return filepath.Join(base, e.Name()), nil
		}
	}
	return "", nil
}
