package verifier

import (
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/teranos/vgate/errors"
	"github.com/teranos/vgate/logger"
)

// availableMemory returns the memory available to new processes, in bytes
var availableMemory = func() (uint64, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get memory stats")
	}
	return v.Available, nil
}

// checkMemory refuses proving runs that would start with too little memory.
// Dev mode skips proof generation and is never refused.
func (a *Adapter) checkMemory(log *zap.SugaredLogger) error {
	if a.devMode || a.minMemory == 0 {
		return nil
	}
	avail, err := availableMemory()
	if err != nil {
		log.Warnw("skipping memory check", logger.FieldError, err)
		return nil
	}
	if avail < a.minMemory {
		return &AdapterError{Op: OpSetup, Command: a.Command(), Err: errors.WithHint(
			errors.Newf("%d MiB available, %d MiB required", avail>>20, a.minMemory>>20),
			"free memory, lower verifier.min_available_memory_mb, or enable verifier.dev_mode")}
	}
	return nil
}
