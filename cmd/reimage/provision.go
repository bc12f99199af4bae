package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kdic/reimage/internal/config"
	"github.com/kdic/reimage/internal/diskpart"
	"github.com/kdic/reimage/internal/history"
	"github.com/kdic/reimage/internal/logger"
	"github.com/kdic/reimage/internal/pipeline"
	"github.com/kdic/reimage/internal/runner"
	"github.com/kdic/reimage/internal/scan"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Reprovision this workstation for the given role",
	Run: func(cmd *cobra.Command, args []string) {
		roleStr, _ := cmd.Flags().GetString("role")
		preserve, _ := cmd.Flags().GetBool("preserve")
		bitlocker, _ := cmd.Flags().GetBool("bitlocker")
		yes, _ := cmd.Flags().GetBool("yes")
		reboot, _ := cmd.Flags().GetBool("reboot")

		role, err := config.ParseRole(roleStr)
		if err != nil {
			fatal(err)
		}

		cfg, log, err := setup()
		if err != nil {
			fatal(err)
		}

		if !preserve && !yes && !confirmWipe() {
			fmt.Println("Aborted.")
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		run := runner.Exec{}
		analyzer := &scan.Analyzer{
			Cfg: cfg,
			DP:  diskpart.NewClient(run, cfg.Tools.Diskpart),
			Run: run,
			Log: log,
		}
		_, topo, err := analyzer.Analyze(ctx)
		if err != nil {
			fatal(err)
		}

		if preserve && !topo.PreserveEligible() {
			fatal(fmt.Errorf("data preservation is not available on this machine"))
		}

		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			log.Warning("run history unavailable", "error", err)
			store = nil
		} else {
			defer store.Close()
			if seconds, ok := store.LastSuccessSeconds(); ok {
				topo.EstimatedSeconds = seconds
			}
		}
		fmt.Printf("Estimated time: %s\n", time.Duration(topo.EstimatedSeconds)*time.Second)

		opts := pipeline.Options{Role: role, PreserveData: preserve, BitLocker: bitlocker}
		p := pipeline.New(cfg, opts, topo, run, log)
		p.OnProgress = progressPrinter()
		p.OnLog = func(msg string) { fmt.Println(msg) }

		started := time.Now()
		err = p.Execute(ctx)
		elapsed := int(time.Since(started).Seconds())
		fmt.Println()

		record := history.Run{
			Role:            string(role),
			Preserve:        preserve,
			StartedAt:       started,
			DurationSeconds: elapsed,
		}

		switch {
		case errors.Is(err, pipeline.ErrCancelled):
			record.Outcome = history.OutcomeCancelled
			recordRun(store, log, record)
			fmt.Println("Provisioning cancelled by user.")
			return
		case err != nil:
			record.Outcome = history.OutcomeFailed
			record.Message = err.Error()
			recordRun(store, log, record)
			fatal(err)
		}

		record.Outcome = history.OutcomeSuccess
		recordRun(store, log, record)
		if err := history.WriteCompletionFile(topo.DriverPath, elapsed); err != nil {
			log.Warning("failed to persist completion time", "error", err)
		}

		fmt.Printf("Done in %s.\n", time.Duration(elapsed)*time.Second)

		if reboot {
			fmt.Println("Rebooting.")
			if _, code, err := run.Run(ctx, cfg.Tools.Shutdown, "/r", "/t", "0"); err != nil || code != 0 {
				log.Warning("reboot request failed", "exitCode", code, "error", err)
			}
		}
	},
}

func init() {
	provisionCmd.Flags().String("role", "", "workstation role: internal, internet, travel or subsidiary")
	provisionCmd.Flags().Bool("preserve", false, "preserve user data instead of wiping the disks")
	provisionCmd.Flags().Bool("bitlocker", false, "use the BitLocker answer-file variant")
	provisionCmd.Flags().Bool("yes", false, "skip the destructive-action confirmation")
	provisionCmd.Flags().Bool("reboot", false, "reboot after a successful run")
	_ = provisionCmd.MarkFlagRequired("role")
}

// confirmWipe gates the destructive path: the operator must type "yes".
func confirmWipe() bool {
	fmt.Print("This will WIPE all disks on this machine. Type 'yes' to continue: ")
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(answer) == "yes"
}

// progressPrinter rewrites one line on a terminal and prints plain lines
// when output is redirected.
func progressPrinter() func(int) {
	tty := isatty.IsTerminal(os.Stdout.Fd())
	return func(value int) {
		if tty {
			fmt.Printf("\rProgress: %3d%%", value)
			return
		}
		fmt.Printf("Progress: %d%%\n", value)
	}
}

func recordRun(store *history.Store, log logger.Logger, r history.Run) {
	if store == nil {
		return
	}
	if err := store.RecordRun(r); err != nil {
		log.Warning("failed to record run history", "error", err)
	}
}
