package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kdic/reimage/internal/diskpart"
	"github.com/kdic/reimage/internal/runner"
	"github.com/kdic/reimage/internal/scan"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Inventory disks and classify volumes without changing anything",
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")

		cfg, log, err := setup()
		if err != nil {
			fatal(err)
		}

		run := runner.Exec{}
		analyzer := &scan.Analyzer{
			Cfg: cfg,
			DP:  diskpart.NewClient(run, cfg.Tools.Diskpart),
			Run: run,
			Log: log,
		}
		disks, topo, err := analyzer.Analyze(context.Background())
		if err != nil {
			fatal(err)
		}

		if jsonOut {
			printAnalysisJSON(disks, topo)
			return
		}
		printAnalysis(disks, topo)
	},
}

func init() {
	analyzeCmd.Flags().Bool("json", false, "output as JSON")
}

func printAnalysis(disks []*diskpart.Disk, topo scan.SystemTopology) {
	for _, d := range disks {
		fmt.Printf("Disk %d  %-24s %s\n", d.Index, d.Kind, gibString(d.SizeGiB))
		for _, v := range d.Volumes {
			letter := v.Letter
			if letter == "" {
				letter = "-"
			}
			fmt.Printf("  Volume %-3d %-2s %-12s %-6s %-10s %10s  %s\n",
				v.Index, letter, v.Label, v.Filesystem, v.PartitionKind, gibString(v.SizeGiB), v.Role)
		}
	}

	fmt.Println()
	fmt.Printf("System disk:    %s\n", indexString(topo.SystemDiskIndex))
	fmt.Printf("Data disk:      %s\n", indexString(topo.DataDiskIndex))
	fmt.Printf("System volume:  %s\n", indexString(topo.SystemVolumeIndex))
	fmt.Printf("Data volume:    %s\n", indexString(topo.DataVolumeIndex))
	fmt.Printf("Boot volume:    %s\n", indexString(topo.BootVolumeIndex))
	fmt.Printf("Driver package: %s\n", topo.DriverPath)
	fmt.Printf("Estimated time: %s\n", (time.Duration(topo.EstimatedSeconds) * time.Second).String())

	if topo.PreserveEligible() {
		fmt.Println("Data preservation is available on this machine.")
	} else if topo.SystemVolumeCount > 1 {
		fmt.Println("Data preservation is NOT available: multiple system volumes found.")
	} else {
		fmt.Println("Data preservation is NOT available on this machine.")
	}
}

func printAnalysisJSON(disks []*diskpart.Disk, topo scan.SystemTopology) {
	out := struct {
		Disks    []*diskpart.Disk    `json:"disks"`
		Topology scan.SystemTopology `json:"topology"`
		Preserve bool                `json:"preserve_eligible"`
	}{disks, topo, topo.PreserveEligible()}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fatal(err)
	}
}

func gibString(gib float64) string {
	return humanize.IBytes(uint64(gib * 1024 * 1024 * 1024))
}

func indexString(i int) string {
	if i == -1 {
		return "(none)"
	}
	return fmt.Sprintf("%d", i)
}
