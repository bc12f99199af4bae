package diskpart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listDiskOutput = `
  Disk ###  Status         Size     Free     Dyn  Gpt
  --------  -------------  -------  -------  ---  ---
  Disk 0    Online          476 GB      0 B        *
  Disk 1    Online          931 GB   931 GB        *
`

const detailOutput = `
0 disk is the selected disk.

Samsung SSD 980 PRO
Disk ID: {1A2B3C4D}
Type   : NVMe
Status : Online

  Volume ###  Ltr  Label        Fs     Type        Size     Status     Info
  ----------  ---  -----------  -----  ----------  -------  ---------  --------
  Volume 0     C   OS           NTFS   Partition    150 GB  Healthy    Boot
  Volume 1         SYSTEM       FAT32  Partition    100 MB  Healthy    System
  Volume 2     D   DATA         NTFS   Partition    326 GB  Healthy

1 disk is the selected disk.

WDC WD10EZEX
Disk ID: {5E6F7A8B}
Type   : SATA
Status : Online

  Volume ###  Ltr  Label        Fs     Type        Size     Status     Info
  ----------  ---  -----------  -----  ----------  -------  ---------  --------
  Volume 3     E   ARCHIVE      NTFS   Partition    931 GB  Healthy
  garbage row that should be skipped
  Volume x    bad row without an index
`

func TestSizeToGiB(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1.0, SizeToGiB("1024 MB"))
	assert.Equal(t, 1024.0, SizeToGiB("1 TB"))
	assert.Equal(t, 0.1, SizeToGiB("50 B"))
	assert.Equal(t, 0.1, SizeToGiB("100 MB")) // 0.0976..., clamped
	assert.Equal(t, 931.0, SizeToGiB("931 GB"))
	assert.Equal(t, 1.5, SizeToGiB("1.5 GB"))
	assert.Equal(t, 0.0, SizeToGiB("not a size"))
	assert.Equal(t, 0.0, SizeToGiB(""))
}

func TestParseListDisk(t *testing.T) {
	t.Parallel()
	indices, sizes := ParseListDisk(listDiskOutput)

	require.Equal(t, []string{"0", "1"}, indices)
	assert.Equal(t, "0 B", sizes["0"])
	assert.Equal(t, "931 GB", sizes["1"])
}

func TestParseListDiskIgnoresNoise(t *testing.T) {
	t.Parallel()
	indices, _ := ParseListDisk("no header here\nDisk 5 Online 100 GB 0 B\n")
	assert.Empty(t, indices, "rows before the header separator are ignored")
}

func TestParseDetail(t *testing.T) {
	t.Parallel()
	disks := ParseDetail(detailOutput, map[string]string{"0": "0 B", "1": "931 GB"})
	require.Len(t, disks, 2)

	nvme := disks[0]
	assert.Equal(t, 0, nvme.Index)
	assert.Equal(t, "NVMe", nvme.Kind)
	require.Len(t, nvme.Volumes, 3)

	os := nvme.Volumes[0]
	assert.Equal(t, 0, os.Index)
	assert.Equal(t, "C", os.Letter)
	assert.Equal(t, "OS", os.Label)
	assert.Equal(t, "NTFS", os.Filesystem)
	assert.Equal(t, "Partition", os.PartitionKind)
	assert.InDelta(t, 150.0, os.SizeGiB, 0.01)

	efi := nvme.Volumes[1]
	assert.Equal(t, "", efi.Letter)
	assert.Equal(t, "SYSTEM", efi.Label)
	assert.Equal(t, "FAT32", efi.Filesystem)
	assert.InDelta(t, 0.1, efi.SizeGiB, 0.001)

	// List-disk reported 0 B, so the total falls back to the volume sum.
	assert.InDelta(t, 150.0+0.1+326.0, nvme.SizeGiB, 0.01)

	sata := disks[1]
	assert.Equal(t, 1, sata.Index)
	assert.Equal(t, "SATA", sata.Kind)
	assert.InDelta(t, 931.0, sata.SizeGiB, 0.01)
	require.Len(t, sata.Volumes, 1, "malformed rows are skipped, not fatal")
}

func TestParseDetailRowWithoutLabel(t *testing.T) {
	t.Parallel()
	// A blank label must not consume the filesystem column.
	vol := parseVolumeRow("  Volume 4     Z                FAT32  Partition    100 MB  Healthy")
	require.NotNil(t, vol)
	assert.Equal(t, "Z", vol.Letter)
	assert.Equal(t, "", vol.Label)
	assert.Equal(t, "FAT32", vol.Filesystem)
}

func TestParseDetailUnparseableInput(t *testing.T) {
	t.Parallel()
	assert.Empty(t, ParseDetail("complete garbage", nil))
}
