// Package scan analyzes the machine before provisioning: it classifies
// volumes by marker folders, resolves the driver package and produces the
// SystemTopology the pipeline runs against.
package scan

// SystemTopology is the analysis result passed downstream. Index fields
// use -1 for "unset"; absence is a checked state, not an error.
type SystemTopology struct {
	SystemDiskIndex   int
	SystemDiskKind    string
	DataDiskIndex     int
	SystemVolumeIndex int
	DataVolumeIndex   int
	BootVolumeIndex   int
	SystemVolumeCount int
	DriverPath        string
	EstimatedSeconds  int
}

// NewSystemTopology returns a topology with all indices unset.
func NewSystemTopology() SystemTopology {
	return SystemTopology{
		SystemDiskIndex:   -1,
		DataDiskIndex:     -1,
		SystemVolumeIndex: -1,
		DataVolumeIndex:   -1,
		BootVolumeIndex:   -1,
	}
}

// PreserveEligible reports whether user data can be carried across the
// run: exactly one System volume, and both Data and Boot volumes resolved.
func (t SystemTopology) PreserveEligible() bool {
	return t.SystemVolumeCount == 1 && t.DataVolumeIndex != -1 && t.BootVolumeIndex != -1
}
