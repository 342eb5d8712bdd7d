package cli

import (
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// residentSetSize returns the resident memory of this process. Loaded
// native plugins live in the same address space, so the value includes
// them. Zero means unavailable.
func residentSetSize() uint64 {
	p, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // G115: pids fit in int32
	if err != nil {
		return 0
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return 0
	}
	return mem.RSS
}
