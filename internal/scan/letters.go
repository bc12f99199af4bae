package scan

import (
	"context"

	"github.com/kdic/reimage/internal/diskpart"
	"github.com/kdic/reimage/internal/logger"
)

// AssignTempLetters gives every letterless volume a temporary drive letter
// so the classifier can probe its folders. Letters come from the E..Z pool
// and are handed out from Z downward; a failed assignment returns the
// letter to the pool and moves on.
func AssignTempLetters(ctx context.Context, dp *diskpart.Client, disks []*diskpart.Disk, log logger.Logger) error {
	pool := make(map[string]bool)
	for c := 'E'; c <= 'Z'; c++ {
		pool[string(c)] = true
	}
	for _, d := range disks {
		for _, v := range d.Volumes {
			if v.Letter != "" {
				delete(pool, v.Letter)
			}
		}
	}

	next := func() string {
		for c := 'Z'; c >= 'E'; c-- {
			if pool[string(c)] {
				return string(c)
			}
		}
		return ""
	}

	for _, d := range disks {
		for _, v := range d.Volumes {
			if v.Letter != "" {
				continue
			}
			letter := next()
			if letter == "" {
				log.Warning("drive letter pool exhausted, leaving volume unlettered", "volume", v.Index)
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := dp.AssignLetter(ctx, v.Index, letter); err != nil {
				log.Warning("failed to assign temporary letter", "volume", v.Index, "letter", letter, "error", err)
				continue
			}
			delete(pool, letter)
			v.Letter = letter
		}
	}
	return nil
}
