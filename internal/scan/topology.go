package scan

import (
	"sort"
	"strings"

	"github.com/kdic/reimage/internal/diskpart"
)

// ExtractTopology condenses classified disks into the SystemTopology the
// planner and pipeline consume. When classification resolved nothing (fresh
// hardware), disks are ranked by kind priority and ascending capacity: the
// best becomes the system disk and, with two or more disks present, the
// next one the data disk.
func ExtractTopology(disks []*diskpart.Disk, driverPath string, estimatedSeconds int) SystemTopology {
	topo := NewSystemTopology()
	topo.DriverPath = driverPath
	topo.EstimatedSeconds = estimatedSeconds

	for _, d := range disks {
		for _, v := range d.Volumes {
			switch v.Role {
			case diskpart.RoleSystem:
				topo.SystemVolumeCount++
				if topo.SystemVolumeIndex == -1 {
					topo.SystemVolumeIndex = v.Index
					topo.SystemDiskIndex = d.Index
					topo.SystemDiskKind = d.Kind
				}
			case diskpart.RoleData:
				if topo.DataVolumeIndex == -1 {
					topo.DataVolumeIndex = v.Index
					topo.DataDiskIndex = d.Index
				}
			case diskpart.RoleBoot:
				if topo.BootVolumeIndex == -1 {
					topo.BootVolumeIndex = v.Index
				}
			}
		}
	}

	sorted := make([]*diskpart.Disk, len(disks))
	copy(sorted, disks)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := diskPriority(sorted[i]), diskPriority(sorted[j])
		for k := range pi {
			if pi[k] != pj[k] {
				return !pi[k]
			}
		}
		return sorted[i].SizeGiB < sorted[j].SizeGiB
	})

	if topo.SystemDiskIndex == -1 && len(sorted) > 0 {
		topo.SystemDiskIndex = sorted[0].Index
		topo.SystemDiskKind = sorted[0].Kind
	}
	if topo.DataDiskIndex == -1 && len(sorted) > 1 {
		for _, d := range sorted {
			if d.Index != topo.SystemDiskIndex {
				topo.DataDiskIndex = d.Index
				break
			}
		}
	}
	return topo
}

// diskPriority orders NVMe above SSD above SATA/other. Each element is
// "does NOT contain the marker", so false sorts first.
func diskPriority(d *diskpart.Disk) [3]bool {
	kind := strings.ToUpper(d.Kind)
	return [3]bool{
		!strings.Contains(kind, "NVME"),
		!strings.Contains(kind, "SSD"),
		!strings.Contains(kind, "SATA"),
	}
}

// DefaultEstimateSeconds is the fallback run-time estimate by system disk
// kind, used when no prior run is recorded.
func DefaultEstimateSeconds(diskKind string) int {
	kind := strings.ToUpper(diskKind)
	switch {
	case strings.Contains(kind, "NVME"):
		return 6 * 60
	case strings.Contains(kind, "SSD"):
		return 7 * 60
	default:
		return 8 * 60
	}
}
