package scan

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kdic/reimage/internal/config"
	"github.com/kdic/reimage/internal/diskpart"
)

// AmbiguityError marks a topology that classification cannot resolve
// safely, e.g. system-marker volumes on more than one disk. It aborts the
// run before any destructive action.
type AmbiguityError struct {
	Reason string
}

func (e *AmbiguityError) Error() string {
	return "topology ambiguity: " + e.Reason
}

// Classifier assigns roles to volumes by probing marker folders under each
// volume root. The probes are injectable for tests.
type Classifier struct {
	Markers config.Markers
	IsDir   func(path string) bool
	ModTime func(path string) (time.Time, error)
}

// NewClassifier builds a Classifier probing the live filesystem.
func NewClassifier(markers config.Markers) *Classifier {
	return &Classifier{
		Markers: markers,
		IsDir: func(path string) bool {
			fi, err := os.Stat(path)
			return err == nil && fi.IsDir()
		},
		ModTime: func(path string) (time.Time, error) {
			fi, err := os.Stat(path)
			if err != nil {
				return time.Time{}, err
			}
			return fi.ModTime(), nil
		},
	}
}

// FilterUSB drops USB-typed disks before classification.
func FilterUSB(disks []*diskpart.Disk) []*diskpart.Disk {
	var internal []*diskpart.Disk
	for _, d := range disks {
		if strings.Contains(strings.ToUpper(d.Kind), "USB") {
			continue
		}
		internal = append(internal, d)
	}
	return internal
}

// Classify runs the three passes in order: System, then Data, then Boot.
// Later passes depend on the assignments of earlier ones.
func (c *Classifier) Classify(disks []*diskpart.Disk) error {
	system, err := c.classifySystem(disks)
	if err != nil {
		return err
	}
	if err := c.classifyData(disks, system); err != nil {
		return err
	}
	c.classifyBoot(disks, system)
	return nil
}

// volumeRoot renders "C" as `C:\`.
func volumeRoot(v *diskpart.Volume) string {
	return v.Letter + `:\`
}

func markerPath(root, marker string) string {
	return root + strings.ReplaceAll(marker, "/", `\`)
}

// classifySystem finds volumes exposing all system markers. The first
// discovered becomes the System volume; qualifying volumes on more than
// one disk is a data-integrity anomaly, never a silent pick.
func (c *Classifier) classifySystem(disks []*diskpart.Disk) (*diskpart.Volume, error) {
	var candidates []*diskpart.Volume
	diskCount := 0
	for _, d := range disks {
		onDisk := false
		for _, v := range d.Volumes {
			if v.Letter == "" {
				continue
			}
			root := volumeRoot(v)
			qualifies := true
			for _, m := range c.Markers.System {
				if !c.IsDir(markerPath(root, m)) {
					qualifies = false
					break
				}
			}
			if qualifies {
				candidates = append(candidates, v)
				onDisk = true
			}
		}
		if onDisk {
			diskCount++
		}
	}

	if diskCount > 1 {
		return nil, &AmbiguityError{
			Reason: fmt.Sprintf("system-marker volumes found on %d disks", diskCount),
		}
	}
	for _, v := range candidates {
		v.Role = diskpart.RoleSystem
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return candidates[0], nil
}

// classifyData picks the Data volume among volumes exposing both data
// markers. Multiple candidates are broken by the most recently created
// data root; a marker directory vanishing mid-comparison is a hard error.
func (c *Classifier) classifyData(disks []*diskpart.Disk, system *diskpart.Volume) error {
	var candidates []*diskpart.Volume
	for _, d := range disks {
		for _, v := range d.Volumes {
			if v.Letter == "" || v == system || v.Role == diskpart.RoleSystem {
				continue
			}
			root := volumeRoot(v)
			qualifies := true
			for _, m := range c.Markers.Data {
				if !c.IsDir(markerPath(root, m)) {
					qualifies = false
					break
				}
			}
			if qualifies {
				candidates = append(candidates, v)
			}
		}
	}

	switch len(candidates) {
	case 0:
		return nil
	case 1:
		candidates[0].Role = diskpart.RoleData
		return nil
	}

	// Ties break by first-seen: only a strictly newer timestamp wins.
	best := candidates[0]
	bestTime, err := c.ModTime(markerPath(volumeRoot(best), c.Markers.DataRoot))
	if err != nil {
		return fmt.Errorf("data marker vanished during comparison on %s: %w", volumeRoot(best), err)
	}
	for _, v := range candidates[1:] {
		t, err := c.ModTime(markerPath(volumeRoot(v), c.Markers.DataRoot))
		if err != nil {
			return fmt.Errorf("data marker vanished during comparison on %s: %w", volumeRoot(v), err)
		}
		if t.After(bestTime) {
			best, bestTime = v, t
		}
	}
	best.Role = diskpart.RoleData
	return nil
}

// classifyBoot marks the first still-unclassified FAT volume on the system
// disk as Boot. Without a System volume there is nothing to boot.
func (c *Classifier) classifyBoot(disks []*diskpart.Disk, system *diskpart.Volume) {
	if system == nil {
		return
	}
	for _, d := range disks {
		if !containsVolume(d, system) {
			continue
		}
		for _, v := range d.Volumes {
			if v.Role == diskpart.RoleUnclassified && strings.Contains(strings.ToUpper(v.Filesystem), "FAT") {
				v.Role = diskpart.RoleBoot
				return
			}
		}
		return
	}
}

func containsVolume(d *diskpart.Disk, target *diskpart.Volume) bool {
	for _, v := range d.Volumes {
		if v == target {
			return true
		}
	}
	return false
}
