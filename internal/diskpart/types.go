// Package diskpart drives the Windows partitioning utility and parses its
// semi-structured text output into a typed disk/volume model.
package diskpart

// VolumeRole is the function assigned to a volume by classification.
type VolumeRole int

const (
	RoleUnclassified VolumeRole = iota
	RoleSystem
	RoleData
	RoleBoot
)

func (r VolumeRole) String() string {
	switch r {
	case RoleSystem:
		return "System"
	case RoleData:
		return "Data"
	case RoleBoot:
		return "Boot"
	default:
		return "-"
	}
}

// Volume is one row of the utility's volume table. Index is the stable
// handle diskpart scripts select volumes by; Letter is assigned lazily.
type Volume struct {
	Index         int
	Letter        string
	Label         string
	Filesystem    string
	PartitionKind string
	SizeGiB       float64
	Role          VolumeRole
}

// Disk owns its volumes in discovery order. A fresh set is produced on
// every analysis pass.
type Disk struct {
	Index   int
	Kind    string
	SizeGiB float64
	Volumes []*Volume
}
