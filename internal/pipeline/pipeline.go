// Package pipeline executes the provisioning stages in order: letter setup,
// format, image apply, driver install, restore, boot configuration. Stages
// run one external process at a time, stream its output, and feed a
// weighted, monotonic progress percentage outward.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kdic/reimage/internal/config"
	"github.com/kdic/reimage/internal/diskpart"
	"github.com/kdic/reimage/internal/logger"
	"github.com/kdic/reimage/internal/plan"
	"github.com/kdic/reimage/internal/progress"
	"github.com/kdic/reimage/internal/runner"
	"github.com/kdic/reimage/internal/scan"
)

// ErrCancelled is the distinguished non-error outcome of a user-requested
// stop. It is never reported as a failure.
var ErrCancelled = errors.New("provisioning cancelled")

// Options select what the run does. Immutable once Execute starts.
type Options struct {
	Role         config.Role
	PreserveData bool
	BitLocker    bool
}

// Per-stage progress weights. They sum to exactly 100.
const (
	weightLetterSetup    = 1
	weightFormat         = 2
	weightApplyImage     = 75
	weightInstallDrivers = 10
	weightRestore        = 10
	weightConfigureBoot  = 2
)

// robocopy uses exit codes below this for benign conditions.
const robocopyFailureFloor = 17

// Pipeline drives one provisioning run.
type Pipeline struct {
	Cfg  *config.Config
	Opts Options
	Topo scan.SystemTopology
	Run  runner.Runner
	DP   *diskpart.Client
	Log  logger.Logger

	// OnProgress receives the cumulative percentage, never decreasing.
	OnProgress func(int)
	// OnLog receives operator-facing lines.
	OnLog func(string)

	current int

	// filesystem seams, overridable in tests
	stat      func(string) (os.FileInfo, error)
	copyFile  func(src, dst string) error
	removeAll func(string) error
}

// New wires a Pipeline against the given runner.
func New(cfg *config.Config, opts Options, topo scan.SystemTopology, r runner.Runner, log logger.Logger) *Pipeline {
	return &Pipeline{
		Cfg:       cfg,
		Opts:      opts,
		Topo:      topo,
		Run:       r,
		DP:        diskpart.NewClient(r, cfg.Tools.Diskpart),
		Log:       log.WithName("pipeline"),
		stat:      os.Stat,
		copyFile:  copyFileContents,
		removeAll: os.RemoveAll,
	}
}

// Execute runs all stages in order. Cancellation of ctx unwinds with
// ErrCancelled; any other error is fatal and identifies the failed stage.
func (p *Pipeline) Execute(ctx context.Context) error {
	action := "wiping"
	if p.Opts.PreserveData {
		action = "preserving"
	}
	p.say(fmt.Sprintf("Provisioning for role %q, %s user data.", p.Opts.Role, action))

	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"letter setup", p.letterSetup},
		{"format", p.format},
		{"image apply", p.applyImage},
		{"driver install", p.installDrivers},
		{"restore", p.restore},
		{"boot configuration", p.configureBoot},
	}
	for _, stage := range stages {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		if err := stage.fn(ctx); err != nil {
			if isCancel(err) {
				return ErrCancelled
			}
			return fmt.Errorf("%s failed: %w", stage.name, err)
		}
	}

	p.emit(100)
	p.say("Provisioning complete.")
	return nil
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled)
}

// emit advances cumulative progress. Values below what was already emitted
// are dropped so the sequence never decreases.
func (p *Pipeline) emit(value int) {
	if value > 100 {
		value = 100
	}
	if value <= p.current {
		return
	}
	p.current = value
	if p.OnProgress != nil {
		p.OnProgress(value)
	}
}

func (p *Pipeline) say(msg string) {
	p.Log.Info(msg)
	if p.OnLog != nil {
		p.OnLog(msg)
	}
}

func (p *Pipeline) logLine(ev runner.Event) {
	if ev.Stream == runner.Stderr {
		p.Log.Warning("tool error output", "line", ev.Line)
		return
	}
	p.Log.Debug("tool output", "line", ev.Line)
}

// letterSetup releases stale C/D/Z bindings (best effort) and, when
// preserving data, rebinds them to the resolved volumes. Unresolved volume
// indices at this point are fatal.
func (p *Pipeline) letterSetup(ctx context.Context) error {
	if out, err := p.DP.RemoveLetters(ctx, "c", "d", "z"); err != nil {
		p.Log.Warning("stale letter release reported errors, continuing", "output", strings.TrimSpace(out), "error", err)
	}

	if p.Opts.PreserveData {
		t := p.Topo
		if t.SystemVolumeIndex == -1 || t.DataVolumeIndex == -1 || t.BootVolumeIndex == -1 {
			return fmt.Errorf("preserve mode requires resolved system, data and boot volumes")
		}
		_, err := p.DP.Script(ctx,
			fmt.Sprintf("select volume %d", t.SystemVolumeIndex),
			"assign letter=C",
			fmt.Sprintf("select volume %d", t.DataVolumeIndex),
			"assign letter=D",
			fmt.Sprintf("select volume %d", t.BootVolumeIndex),
			"assign letter=Z",
		)
		if err != nil {
			return fmt.Errorf("letter assignment: %w", err)
		}
	}

	p.emit(p.current + weightLetterSetup)
	return nil
}

func (p *Pipeline) format(ctx context.Context) error {
	script, err := plan.Script(p.Topo, p.Opts.PreserveData, p.Cfg.Partitions)
	if err != nil {
		return err
	}
	p.say("Partitioning and formatting disks.")
	if _, err := p.DP.Script(ctx, script...); err != nil {
		return err
	}
	p.emit(p.current + weightFormat)
	return nil
}

func (p *Pipeline) applyImage(ctx context.Context) error {
	imageFile := filepath.Join(p.Cfg.ImageDir(), p.Cfg.Images[p.Opts.Role])
	if _, err := p.stat(imageFile); err != nil {
		return fmt.Errorf("image file not found: %s", imageFile)
	}

	p.say("Applying OS image.")
	base := p.current
	code, err := p.Run.Stream(ctx, func(ev runner.Event) error {
		if frac, ok := progress.ParsePercent(ev.Line); ok {
			p.emit(base + int(frac*weightApplyImage))
		}
		p.logLine(ev)
		return nil
	}, p.Cfg.Tools.Dism,
		"/Apply-Image",
		"/ImageFile:"+imageFile,
		"/Index:1",
		`/ApplyDir:C:\`,
	)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("dism image apply exited with code %d", code)
	}
	p.emit(base + weightApplyImage)
	return nil
}

// installDrivers injects the driver package into the offline image. The
// tool may emit no counters at all; the stage still earns its full weight
// on success.
func (p *Pipeline) installDrivers(ctx context.Context) error {
	p.say("Installing drivers into the offline image.")
	base := p.current
	code, err := p.Run.Stream(ctx, func(ev runner.Event) error {
		if frac, ok := progress.ParseCount(ev.Line); ok {
			p.emit(base + int(frac*weightInstallDrivers))
		}
		p.logLine(ev)
		return nil
	}, p.Cfg.Tools.Dism,
		`/image:C:\`,
		"/add-driver",
		"/driver:"+p.Topo.DriverPath,
		"/Recurse",
	)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("dism driver install exited with code %d", code)
	}
	p.emit(base + weightInstallDrivers)
	return nil
}

// configureBoot writes UEFI boot files to the boot volume and points the
// default boot entry at the OS volume. Failures here leave the machine
// unbootable, so everything is fatal.
func (p *Pipeline) configureBoot(ctx context.Context) error {
	p.say("Configuring the boot loader.")
	if err := p.execChecked(ctx, "boot file creation", 1, p.Cfg.Tools.Bcdboot,
		`C:\Windows`, "/s", "Z:", "/f", "UEFI"); err != nil {
		return err
	}
	for _, field := range []string{"device", "osdevice"} {
		if err := p.execChecked(ctx, "default boot entry update", 1, p.Cfg.Tools.Bcdedit,
			"/set", "{default}", field, "partition=C:"); err != nil {
			return err
		}
	}
	p.emit(p.current + weightConfigureBoot)
	return nil
}

// execChecked streams a command and fails unless the exit code is below
// okBelow (1 for strict tools, 17 for robocopy).
func (p *Pipeline) execChecked(ctx context.Context, operation string, okBelow int, name string, args ...string) error {
	p.Log.Info("running", "tool", name, "args", strings.Join(args, " "))
	code, err := p.Run.Stream(ctx, func(ev runner.Event) error {
		p.logLine(ev)
		return nil
	}, name, args...)
	if err != nil {
		return err
	}
	if code >= okBelow || code < 0 {
		return fmt.Errorf("%s exited with code %d", operation, code)
	}
	return nil
}
