package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// JobKind selects how a restore job moves its payload.
type JobKind int

const (
	// JobFolderCopy mirrors a directory tree with the file-copy tool.
	JobFolderCopy JobKind = iota
	// JobFileCopy copies a single file into a directory with the file-copy tool.
	JobFileCopy
	// JobFileRename copies a single file to an exact destination path.
	JobFileRename
)

// Job is one restore step. Each kind reads only the fields it needs.
type Job struct {
	Kind   JobKind
	Name   string
	Source string
	Dest   string
	Weight int
	// Required jobs fail the run when their source is missing; others are
	// skipped with a warning and still credit their weight.
	Required bool
	// DeleteSource removes the source after a successful copy, best effort.
	DeleteSource bool
}

// userFolders are preserved across reprovisioning in both directions.
var userFolders = []string{"Desktop", "Downloads", "Documents", "Pictures", "Music", "Videos"}

// restoreJobs builds the ordered job list for this run.
func (p *Pipeline) restoreJobs() []Job {
	cfg := p.Cfg
	var jobs []Job

	for _, folder := range userFolders {
		jobs = append(jobs, Job{
			Kind:   JobFolderCopy,
			Name:   fmt.Sprintf("user folder (%s)", folder),
			Source: `C:\Users\` + cfg.User + `\` + folder,
			Dest:   `D:\` + cfg.Markers.DataRoot + `\` + folder,
			Weight: 1,
		})
	}

	jobs = append(jobs, Job{
		Kind:   JobFolderCopy,
		Name:   "driver package copy",
		Source: p.Topo.DriverPath,
		Dest:   `C:\SEPR\Drivers`,
		Weight: 1,
	})

	variant := cfg.StartMenus[p.Opts.Role]
	jobs = append(jobs, Job{
		Kind:   JobFileCopy,
		Name:   "start menu layout",
		Source: filepath.Join(cfg.TempDir, variant, "start2.bin"),
		Dest:   `C:\Users\` + cfg.User + `\AppData\Local\Packages\Microsoft.Windows.StartMenuExperienceHost_cw5n1h2txyewy\LocalState`,
		Weight: 1,
	})

	answerFile := cfg.AnswerFiles.Normal
	if p.Opts.BitLocker {
		answerFile = cfg.AnswerFiles.BitLocker
	}
	jobs = append(jobs, Job{
		Kind:     JobFileRename,
		Name:     "unattended answer file",
		Source:   filepath.Join(cfg.ImageDir(), answerFile),
		Dest:     `C:\Windows\system32\sysprep\unattend.xml`,
		Weight:   1,
		Required: true,
	})

	if p.Opts.PreserveData {
		jobs = append(jobs, Job{
			Kind:         JobFolderCopy,
			Name:         "sticky notes state",
			Source:       filepath.Join(cfg.TempDir, "StickyNotes"),
			Dest:         `C:\Users\` + cfg.User + `\AppData\Local\Packages\Microsoft.MicrosoftStickyNotes_8wekyb3d8bbwe\LocalState`,
			Weight:       1,
			DeleteSource: true,
		})
	}

	return jobs
}

// restore runs the job list in order. Optional jobs whose source is missing
// are skipped with a warning; the stage always finishes at its full weight.
func (p *Pipeline) restore(ctx context.Context) error {
	p.say("Restoring user data and configuration files.")
	base := p.current
	earned := 0

	for _, job := range p.restoreJobs() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := p.stat(job.Source); err != nil {
			if job.Required {
				return fmt.Errorf("%s: required source %s is missing", job.Name, job.Source)
			}
			p.Log.Warning("skipping restore job, source missing", "job", job.Name, "source", job.Source)
			earned += job.Weight
			p.emit(base + earned)
			continue
		}

		if err := p.dispatch(ctx, job); err != nil {
			return fmt.Errorf("%s: %w", job.Name, err)
		}

		if job.DeleteSource {
			if err := p.removeAll(job.Source); err != nil {
				p.Log.Warning("failed to delete temporary source", "job", job.Name, "source", job.Source, "error", err)
			}
		}

		earned += job.Weight
		p.emit(base + earned)
	}

	p.emit(base + weightRestore)
	return nil
}

func (p *Pipeline) dispatch(ctx context.Context, job Job) error {
	switch job.Kind {
	case JobFolderCopy:
		return p.robocopy(ctx, job.Name, job.Source, job.Dest, "")
	case JobFileCopy:
		return p.robocopy(ctx, job.Name, filepath.Dir(job.Source), job.Dest, filepath.Base(job.Source))
	case JobFileRename:
		return p.copyFile(job.Source, job.Dest)
	default:
		return fmt.Errorf("unknown job kind %d", job.Kind)
	}
}

// robocopy mirrors srcDir into destDir (optionally a single file) with
// attribute/ACL preservation, one retry and multi-threaded copy.
func (p *Pipeline) robocopy(ctx context.Context, operation, srcDir, destDir, file string) error {
	args := []string{srcDir, destDir}
	if file != "" {
		args = append(args, file)
	}
	args = append(args, "/E", "/COPYALL", "/B", "/R:1", "/W:1", "/J", "/MT:16", "/NP", "/NJS", "/NJH")
	return p.execChecked(ctx, operation, robocopyFailureFloor, p.Cfg.Tools.Robocopy, args...)
}

func copyFileContents(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
