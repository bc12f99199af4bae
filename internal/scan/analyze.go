package scan

import (
	"context"
	"fmt"

	"github.com/kdic/reimage/internal/config"
	"github.com/kdic/reimage/internal/diskpart"
	"github.com/kdic/reimage/internal/history"
	"github.com/kdic/reimage/internal/logger"
	"github.com/kdic/reimage/internal/runner"
)

// Analyzer performs the full pre-provisioning analysis pass.
type Analyzer struct {
	Cfg *config.Config
	DP  *diskpart.Client
	Run runner.Runner
	Log logger.Logger
}

// Analyze inventories the disks, classifies their volumes and resolves the
// machine's driver package. It returns both the parsed disks (for display)
// and the condensed topology.
func (a *Analyzer) Analyze(ctx context.Context) ([]*diskpart.Disk, SystemTopology, error) {
	log := a.Log.WithName("analyze")

	indices, sizes, err := a.DP.ListDisks(ctx)
	if err != nil {
		return nil, SystemTopology{}, err
	}
	if len(indices) == 0 {
		return nil, SystemTopology{}, fmt.Errorf("no installed disks found")
	}

	disks, err := a.DP.DetailDisks(ctx, indices, sizes)
	if err != nil {
		return nil, SystemTopology{}, err
	}
	if len(disks) == 0 {
		return nil, SystemTopology{}, fmt.Errorf("disk detail output could not be parsed")
	}

	if err := AssignTempLetters(ctx, a.DP, disks, log); err != nil {
		return nil, SystemTopology{}, err
	}

	internal := FilterUSB(disks)
	log.Debug("filtered USB disks", "total", len(disks), "internal", len(internal))

	classifier := NewClassifier(a.Cfg.Markers)
	if err := classifier.Classify(internal); err != nil {
		return nil, SystemTopology{}, err
	}

	driverPath, err := ResolveDriverPath(ctx, a.Run, a.Cfg.Tools.Wmic, a.Cfg.DriversDir())
	if err != nil {
		return nil, SystemTopology{}, err
	}

	estimate := history.ReadCompletionFile(driverPath)
	topo := ExtractTopology(internal, driverPath, estimate)
	if topo.EstimatedSeconds == 0 {
		topo.EstimatedSeconds = DefaultEstimateSeconds(topo.SystemDiskKind)
	}

	log.Info("analysis complete",
		"systemDisk", topo.SystemDiskIndex,
		"dataDisk", topo.DataDiskIndex,
		"systemVolume", topo.SystemVolumeIndex,
		"dataVolume", topo.DataVolumeIndex,
		"bootVolume", topo.BootVolumeIndex,
		"systemVolumes", topo.SystemVolumeCount,
		"driverPath", topo.DriverPath,
	)
	return internal, topo, nil
}
