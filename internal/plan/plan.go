// Package plan turns a resolved topology into the exact diskpart command
// sequence for the run. It never executes anything.
package plan

import (
	"fmt"

	"github.com/kdic/reimage/internal/config"
	"github.com/kdic/reimage/internal/scan"
)

// TopologyError is a planning-fatal condition: the disks at hand cannot
// support the requested operation, and nothing destructive has happened yet.
type TopologyError struct {
	Reason string
}

func (e *TopologyError) Error() string {
	return "cannot plan partitioning: " + e.Reason
}

// Script emits the partitioning commands for one of the four shapes:
// preserve (reformat system and boot only), clean single-disk, clean
// two-disk, or an error when the topology is undeterminable.
func Script(topo scan.SystemTopology, preserve bool, parts config.Partitions) ([]string, error) {
	if preserve {
		return preserveScript(topo)
	}
	return cleanScript(topo, parts)
}

// preserveScript quick-formats the system and boot volumes in place. The
// data volume is deliberately untouched. Letters C and Z were bound during
// letter setup.
func preserveScript(topo scan.SystemTopology) ([]string, error) {
	if topo.SystemVolumeIndex == -1 || topo.BootVolumeIndex == -1 {
		return nil, &TopologyError{Reason: "preserve mode requires resolved system and boot volumes"}
	}
	return []string{
		"select volume c",
		"format fs=ntfs label=OS quick",
		"select volume z",
		"format fs=fat32 quick",
	}, nil
}

func cleanScript(topo scan.SystemTopology, parts config.Partitions) ([]string, error) {
	singleDisk := topo.DataDiskIndex == -1 || topo.SystemDiskIndex == topo.DataDiskIndex

	if singleDisk {
		if topo.SystemDiskIndex == -1 {
			return nil, &TopologyError{Reason: "no viable system disk"}
		}
		return append(
			systemDiskScript(topo.SystemDiskIndex, parts),
			fmt.Sprintf("create partition primary size=%d", parts.OSSizeMB),
			"format fs=ntfs label=OS quick",
			"assign letter=C",
			"create partition primary",
			"format fs=ntfs label=DATA quick",
			"assign letter=D",
		), nil
	}

	if topo.SystemDiskIndex == -1 {
		return nil, &TopologyError{Reason: "data disk resolved without a system disk"}
	}
	script := append(
		systemDiskScript(topo.SystemDiskIndex, parts),
		"create partition primary",
		"format fs=ntfs label=OS quick",
		"assign letter=C",
	)
	return append(script,
		fmt.Sprintf("select disk %d", topo.DataDiskIndex),
		"clean",
		"convert gpt",
		"create partition primary",
		"format fs=ntfs label=DATA quick",
		"assign letter=D",
	), nil
}

// systemDiskScript wipes the disk, converts it to GPT and creates the EFI
// partition. The single-disk shape follows with a fixed-size OS partition;
// the two-disk shape lets the OS partition take the remainder.
func systemDiskScript(diskIndex int, parts config.Partitions) []string {
	return []string{
		fmt.Sprintf("select disk %d", diskIndex),
		"clean",
		"convert gpt",
		fmt.Sprintf("create partition EFI size=%d", parts.EFISizeMB),
		"format fs=fat32 quick",
		"assign letter=Z",
	}
}
