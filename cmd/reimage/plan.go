package main

import (
	"context"
	"fmt"

	"github.com/kdic/reimage/internal/diskpart"
	"github.com/kdic/reimage/internal/plan"
	"github.com/kdic/reimage/internal/runner"
	"github.com/kdic/reimage/internal/scan"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the partitioning script a provision run would execute",
	Run: func(cmd *cobra.Command, args []string) {
		preserve, _ := cmd.Flags().GetBool("preserve")

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
		_, topo, err := analyzer.Analyze(context.Background())
		if err != nil {
			fatal(err)
		}

		if preserve && !topo.PreserveEligible() {
			fatal(fmt.Errorf("data preservation is not available on this machine"))
		}

		script, err := plan.Script(topo, preserve, cfg.Partitions)
		if err != nil {
			fatal(err)
		}
		for _, line := range script {
			fmt.Println(line)
		}
	},
}

func init() {
	planCmd.Flags().Bool("preserve", false, "plan for a data-preserving run")
}
