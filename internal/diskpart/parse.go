package diskpart

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// One banner per disk in "detail disk" output, e.g. "1 disk is the selected disk."
	selectedDiskRe = regexp.MustCompile(`(\d+) disk is the selected disk`)
	diskTypeRe     = regexp.MustCompile(`(?i)type\s*:\s*(.+)`)
	volumeIndexRe  = regexp.MustCompile(`\d+`)
	columnSplitRe  = regexp.MustCompile(`\s{2,}`)
	sizeRe         = regexp.MustCompile(`(\d+\.?\d*)\s*(TB|GB|MB|KB|B)`)
)

// Filesystem names that can appear where a blank label would otherwise put
// the filesystem column. Keeps the label field from eating the fs field.
var knownFilesystems = map[string]bool{
	"NTFS": true, "FAT32": true, "FAT": true, "REFS": true, "EXFAT": true, "RAW": true,
}

// ParseListDisk extracts disk indices and their size strings from a
// "list disk" table. Sizes stay as strings ("931 GB"); precision differs
// from the detail listing, so conversion is deferred.
func ParseListDisk(output string) ([]string, map[string]string) {
	var indices []string
	sizes := make(map[string]string)

	headerFound := false
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "---") {
			headerFound = true
			continue
		}
		if !headerFound || strings.TrimSpace(line) == "" {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 4 || !strings.EqualFold(parts[0], "disk") {
			continue
		}
		index := parts[1]
		if _, err := strconv.Atoi(index); err != nil {
			continue
		}

		// Scan from the end for the first size unit; the column before it is
		// the disk total (the trailing pair is free space).
		for i := len(parts) - 1; i > 2; i-- {
			if isSizeUnit(parts[i]) {
				indices = append(indices, index)
				sizes[index] = parts[i-1] + " " + parts[i]
				break
			}
		}
	}
	return indices, sizes
}

// SizeToGiB converts "<number> <unit>" into GiB, clamping any positive
// result below 0.1 up to 0.1 so tiny EFI partitions never round to zero.
func SizeToGiB(s string) float64 {
	m := sizeRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0
	}
	size, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}

	var gib float64
	switch m[2] {
	case "TB":
		gib = size * 1024
	case "GB":
		gib = size
	case "MB":
		gib = size / 1024
	case "KB":
		gib = size / (1024 * 1024)
	case "B":
		gib = size / (1024 * 1024 * 1024)
	}

	if gib > 0 && gib < 0.1 {
		return 0.1
	}
	return round2(gib)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ParseDetail converts a multi-disk "detail disk" text block into Disks.
// diskSizes carries the totals from the list-disk table; a disk whose total
// reads as zero but whose volumes sum to a positive value gets the sum
// instead. Malformed rows are skipped, never fatal: callers validate
// non-emptiness.
func ParseDetail(output string, diskSizes map[string]string) []*Disk {
	var disks []*Disk

	banners := selectedDiskRe.FindAllStringSubmatchIndex(output, -1)
	for i, banner := range banners {
		indexStr := output[banner[2]:banner[3]]
		index, err := strconv.Atoi(indexStr)
		if err != nil {
			continue
		}

		chunkEnd := len(output)
		if i+1 < len(banners) {
			chunkEnd = banners[i+1][0]
		}
		chunk := output[banner[1]:chunkEnd]

		kind := "unknown"
		if m := diskTypeRe.FindStringSubmatch(chunk); m != nil {
			kind = strings.TrimSpace(m[1])
		}

		disk := &Disk{
			Index:   index,
			Kind:    kind,
			SizeGiB: SizeToGiB(diskSizes[indexStr]),
		}
		parseVolumeSection(chunk, disk)

		if disk.SizeGiB == 0 {
			var sum float64
			for _, v := range disk.Volumes {
				sum += v.SizeGiB
			}
			if sum > 0 {
				disk.SizeGiB = round2(sum)
			}
		}
		disks = append(disks, disk)
	}
	return disks
}

func parseVolumeSection(chunk string, disk *Disk) {
	inSection := false
	for _, line := range strings.Split(chunk, "\n") {
		if strings.Contains(line, "Volume ###") {
			inSection = true
			continue
		}
		if !inSection || strings.Contains(line, "---") || strings.TrimSpace(line) == "" {
			continue
		}
		if vol := parseVolumeRow(line); vol != nil {
			disk.Volumes = append(disk.Volumes, vol)
		}
	}
}

// parseVolumeRow parses one table row, e.g.
//
//	Volume 2    C   OS     NTFS   Partition    150 GB  Healthy    Boot
//
// Rows that do not parse cleanly yield nil.
func parseVolumeRow(line string) *Volume {
	parts := columnSplitRe.Split(strings.TrimSpace(line), -1)
	if len(parts) == 0 || !strings.HasPrefix(strings.ToLower(parts[0]), "volume") {
		return nil
	}
	m := volumeIndexRe.FindString(parts[0])
	if m == "" {
		return nil
	}
	index, _ := strconv.Atoi(m)

	p := 1
	vol := &Volume{Index: index}

	if p < len(parts) && len(parts[p]) == 1 {
		c := strings.ToUpper(parts[p])
		if c >= "A" && c <= "Z" {
			vol.Letter = c
			p++
		}
	}

	if p < len(parts) && !knownFilesystems[strings.ToUpper(parts[p])] {
		vol.Label = parts[p]
		p++
	}

	if p >= len(parts) {
		return nil
	}
	vol.Filesystem = parts[p]
	p++

	if p >= len(parts) {
		return nil
	}
	vol.PartitionKind = parts[p]
	p++

	if p >= len(parts) {
		return nil
	}
	sizeStr := parts[p]
	p++
	if p < len(parts) && isSizeUnit(parts[p]) {
		sizeStr += " " + parts[p]
	}
	vol.SizeGiB = SizeToGiB(sizeStr)
	return vol
}

func isSizeUnit(s string) bool {
	switch strings.ToUpper(s) {
	case "TB", "GB", "MB", "KB", "B":
		return true
	}
	return false
}
