package app

import (
	"context"
	"fmt"

	"github.com/Gthulhu/schedcore/config"
	"github.com/Gthulhu/schedcore/machine"
	"github.com/Gthulhu/schedcore/pkg/logger"
)

// StartWorkload spawns the synthetic threads configured at boot: spinners
// that burn CPU between preemption checkpoints and sleepers that block on
// the timer. Runs on the machine's initial thread.
func StartWorkload(ctx context.Context, m *machine.Machine, cfg config.WorkloadConfig) {
	for i := 0; i < cfg.Spinners; i++ {
		name := fmt.Sprintf("spin-%d", i)
		_, err := m.Spawn(name, cfg.SpinnerPriority, func() {
			for {
				m.Checkpoint()
			}
		})
		if err != nil {
			logger.Logger(ctx).Warn().Err(err).Msgf("failed to spawn %s", name)
		}
	}

	sleepTicks := int64(cfg.SleepTicks)
	if sleepTicks <= 0 {
		sleepTicks = 1
	}
	for i := 0; i < cfg.Sleepers; i++ {
		name := fmt.Sprintf("sleep-%d", i)
		_, err := m.Spawn(name, cfg.SleeperPriority, func() {
			for {
				m.Sleep(sleepTicks)
			}
		})
		if err != nil {
			logger.Logger(ctx).Warn().Err(err).Msgf("failed to spawn %s", name)
		}
	}

	logger.Logger(ctx).Info().Msgf("workload started, %d spinners and %d sleepers",
		cfg.Spinners, cfg.Sleepers)
}
