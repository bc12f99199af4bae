package scan

import (
	"errors"
	"testing"
	"time"

	"github.com/kdic/reimage/internal/config"
	"github.com/kdic/reimage/internal/diskpart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMarkers = config.Markers{
	System:   []string{"Windows/system32/sysprep", "Users/kdic/desktop", "Users/kdic/appdata"},
	Data:     []string{"kdic/desktop", "kdic/downloads"},
	DataRoot: "kdic",
}

// fakeClassifier probes a set of known directory paths instead of a real
// filesystem.
func fakeClassifier(dirs map[string]bool, times map[string]time.Time) *Classifier {
	return &Classifier{
		Markers: testMarkers,
		IsDir:   func(path string) bool { return dirs[path] },
		ModTime: func(path string) (time.Time, error) {
			t, ok := times[path]
			if !ok {
				return time.Time{}, errors.New("stat failed")
			}
			return t, nil
		},
	}
}

func systemDirs(letter string) map[string]bool {
	return map[string]bool{
		letter + `:\Windows\system32\sysprep`: true,
		letter + `:\Users\kdic\desktop`:       true,
		letter + `:\Users\kdic\appdata`:       true,
	}
}

func dataDirs(letter string) map[string]bool {
	return map[string]bool{
		letter + `:\kdic\desktop`:   true,
		letter + `:\kdic\downloads`: true,
	}
}

func merge(ms ...map[string]bool) map[string]bool {
	out := map[string]bool{}
	for _, m := range ms {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func vol(index int, letter, fs string) *diskpart.Volume {
	return &diskpart.Volume{Index: index, Letter: letter, Filesystem: fs}
}

func TestClassifyHappyPath(t *testing.T) {
	t.Parallel()
	system := vol(0, "C", "NTFS")
	boot := vol(1, "Z", "FAT32")
	data := vol(2, "D", "NTFS")
	disks := []*diskpart.Disk{
		{Index: 0, Kind: "NVMe", Volumes: []*diskpart.Volume{system, boot}},
		{Index: 1, Kind: "SATA", Volumes: []*diskpart.Volume{data}},
	}

	c := fakeClassifier(merge(systemDirs("C"), dataDirs("D")), nil)
	require.NoError(t, c.Classify(disks))

	assert.Equal(t, diskpart.RoleSystem, system.Role)
	assert.Equal(t, diskpart.RoleBoot, boot.Role)
	assert.Equal(t, diskpart.RoleData, data.Role)
}

func TestClassifySystemOnTwoDisksIsAmbiguous(t *testing.T) {
	t.Parallel()
	disks := []*diskpart.Disk{
		{Index: 0, Volumes: []*diskpart.Volume{vol(0, "C", "NTFS")}},
		{Index: 1, Volumes: []*diskpart.Volume{vol(1, "E", "NTFS")}},
	}

	c := fakeClassifier(merge(systemDirs("C"), systemDirs("E")), nil)
	err := c.Classify(disks)

	var ambig *AmbiguityError
	require.ErrorAs(t, err, &ambig)
}

func TestClassifyTwoSystemVolumesSameDisk(t *testing.T) {
	t.Parallel()
	// Both volumes on one disk qualify: not ambiguous, both get the role.
	a := vol(0, "C", "NTFS")
	b := vol(1, "E", "NTFS")
	disks := []*diskpart.Disk{{Index: 0, Volumes: []*diskpart.Volume{a, b}}}

	c := fakeClassifier(merge(systemDirs("C"), systemDirs("E")), nil)
	require.NoError(t, c.Classify(disks))
	assert.Equal(t, diskpart.RoleSystem, a.Role)
	assert.Equal(t, diskpart.RoleSystem, b.Role)
}

func TestClassifyDataTieBreaksByNewestRoot(t *testing.T) {
	t.Parallel()
	older := vol(0, "D", "NTFS")
	newer := vol(1, "E", "NTFS")
	disks := []*diskpart.Disk{{Index: 0, Volumes: []*diskpart.Volume{older, newer}}}

	c := fakeClassifier(merge(dataDirs("D"), dataDirs("E")), map[string]time.Time{
		`D:\kdic`: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		`E:\kdic`: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, c.Classify(disks))

	assert.Equal(t, diskpart.RoleUnclassified, older.Role)
	assert.Equal(t, diskpart.RoleData, newer.Role)
}

func TestClassifyDataTieEqualTimesKeepsFirst(t *testing.T) {
	t.Parallel()
	first := vol(0, "D", "NTFS")
	second := vol(1, "E", "NTFS")
	disks := []*diskpart.Disk{{Index: 0, Volumes: []*diskpart.Volume{first, second}}}

	ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	c := fakeClassifier(merge(dataDirs("D"), dataDirs("E")), map[string]time.Time{
		`D:\kdic`: ts,
		`E:\kdic`: ts,
	})
	require.NoError(t, c.Classify(disks))
	assert.Equal(t, diskpart.RoleData, first.Role)
}

func TestClassifyDataTieStatFailureIsFatal(t *testing.T) {
	t.Parallel()
	disks := []*diskpart.Disk{{Index: 0, Volumes: []*diskpart.Volume{
		vol(0, "D", "NTFS"), vol(1, "E", "NTFS"),
	}}}

	c := fakeClassifier(merge(dataDirs("D"), dataDirs("E")), map[string]time.Time{})
	assert.Error(t, c.Classify(disks))
}

func TestClassifySystemVolumeNeverBecomesData(t *testing.T) {
	t.Parallel()
	// A system volume carrying the data markers too must stay System.
	system := vol(0, "C", "NTFS")
	disks := []*diskpart.Disk{{Index: 0, Volumes: []*diskpart.Volume{system}}}

	c := fakeClassifier(merge(systemDirs("C"), dataDirs("C")), nil)
	require.NoError(t, c.Classify(disks))
	assert.Equal(t, diskpart.RoleSystem, system.Role)
}

func TestClassifyBootRequiresSystem(t *testing.T) {
	t.Parallel()
	fat := vol(0, "Z", "FAT32")
	disks := []*diskpart.Disk{{Index: 0, Volumes: []*diskpart.Volume{fat}}}

	c := fakeClassifier(map[string]bool{}, nil)
	require.NoError(t, c.Classify(disks))
	assert.Equal(t, diskpart.RoleUnclassified, fat.Role)
}

func TestClassifySkipsLetterlessVolumes(t *testing.T) {
	t.Parallel()
	unlettered := vol(0, "", "NTFS")
	disks := []*diskpart.Disk{{Index: 0, Volumes: []*diskpart.Volume{unlettered}}}

	probed := false
	c := &Classifier{
		Markers: testMarkers,
		IsDir:   func(string) bool { probed = true; return true },
	}
	require.NoError(t, c.Classify(disks))
	assert.False(t, probed)
	assert.Equal(t, diskpart.RoleUnclassified, unlettered.Role)
}

func TestFilterUSB(t *testing.T) {
	t.Parallel()
	disks := []*diskpart.Disk{
		{Index: 0, Kind: "NVMe"},
		{Index: 1, Kind: "USB"},
		{Index: 2, Kind: "usb attached scsi"},
		{Index: 3, Kind: "SATA"},
	}
	kept := FilterUSB(disks)
	require.Len(t, kept, 2)
	assert.Equal(t, 0, kept[0].Index)
	assert.Equal(t, 3, kept[1].Index)
}
