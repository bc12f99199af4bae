package diskpart

import (
	"context"
	"fmt"
	"strings"

	"github.com/kdic/reimage/internal/runner"
)

// Client feeds scripts to the partitioning utility via stdin and returns
// its combined output. Success is exit code 0.
type Client struct {
	Run  runner.Runner
	Tool string
}

// NewClient wires a Client against the given runner.
func NewClient(r runner.Runner, tool string) *Client {
	if tool == "" {
		tool = "diskpart"
	}
	return &Client{Run: r, Tool: tool}
}

// Script executes the given command lines as one diskpart script.
func (c *Client) Script(ctx context.Context, commands ...string) (string, error) {
	script := strings.Join(commands, "\n")
	out, code, err := c.Run.RunScript(ctx, script, c.Tool)
	if err != nil {
		return out, err
	}
	if code != 0 {
		return out, fmt.Errorf("%s exited with code %d: %s", c.Tool, code, strings.TrimSpace(out))
	}
	return out, nil
}

// ListDisks returns the disk indices and their size strings.
func (c *Client) ListDisks(ctx context.Context) ([]string, map[string]string, error) {
	out, err := c.Script(ctx, "list disk")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list disks: %w", err)
	}
	indices, sizes := ParseListDisk(out)
	return indices, sizes, nil
}

// DetailDisks selects each disk in turn and captures its detail listing,
// returning the parsed model.
func (c *Client) DetailDisks(ctx context.Context, indices []string, sizes map[string]string) ([]*Disk, error) {
	var commands []string
	for _, i := range indices {
		commands = append(commands, "select disk "+i, "detail disk")
	}
	out, err := c.Script(ctx, commands...)
	if err != nil {
		return nil, fmt.Errorf("failed to detail disks: %w", err)
	}
	return ParseDetail(out, sizes), nil
}

// AssignLetter binds a drive letter to a volume.
func (c *Client) AssignLetter(ctx context.Context, volumeIndex int, letter string) error {
	_, err := c.Script(ctx,
		fmt.Sprintf("select volume %d", volumeIndex),
		"assign letter="+letter,
	)
	return err
}

// RemoveLetters releases letter bindings without touching the volumes.
// Selecting a letter that is not bound makes diskpart fail, which callers
// treat as best-effort.
func (c *Client) RemoveLetters(ctx context.Context, letters ...string) (string, error) {
	var commands []string
	for _, l := range letters {
		commands = append(commands, "select vol "+strings.ToLower(l), "remove letter "+strings.ToLower(l))
	}
	return c.Script(ctx, commands...)
}
