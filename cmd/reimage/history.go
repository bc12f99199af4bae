package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kdic/reimage/internal/history"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent provisioning runs",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, _, err := setup()
		if err != nil {
			fatal(err)
		}

		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			fatal(err)
		}
		defer store.Close()

		runs, err := store.RecentRuns(limit)
		if err != nil {
			fatal(err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return
		}

		for _, r := range runs {
			mode := "wipe"
			if r.Preserve {
				mode = "preserve"
			}
			fmt.Printf("%-20s %-10s %-8s %-9s %8s", humanize.Time(r.StartedAt), r.Role, mode, r.Outcome,
				time.Duration(r.DurationSeconds)*time.Second)
			if r.Message != "" {
				fmt.Printf("  %s", r.Message)
			}
			fmt.Println()
		}
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of runs to show")
}
