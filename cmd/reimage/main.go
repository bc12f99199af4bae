package main

import (
	"fmt"
	"os"

	"github.com/kdic/reimage/internal/config"
	"github.com/kdic/reimage/internal/logger"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "reimage",
	Short: "Unattended workstation reprovisioning tool",
	Long: `reimage provisions a Windows workstation for one of the predefined
roles (internal, internet, travel, subsidiary): it partitions the local
disks, applies the role's OS image, installs drivers, restores user data
and configures the boot loader.`,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the config and builds the logger; every subcommand starts here.
func setup() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
