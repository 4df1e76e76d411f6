package api

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemStats is the host and process memory snapshot reported by /health.
type SystemStats struct {
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	ProcessResidentMB int64   `json:"process_resident_mb"`
	ProcessVirtualMB  int64   `json:"process_virtual_mb"`
}

// captureSystemStats gathers memory usage for the host and current process
func captureSystemStats(ctx context.Context) (*SystemStats, error) {
	vmStat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get virtual memory stats: %w", err)
	}

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())) //nolint:gosec // pid fits int32
	if err != nil {
		return nil, fmt.Errorf("failed to get process instance: %w", err)
	}
	memInfo, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get process memory info: %w", err)
	}

	return &SystemStats{
		MemoryUsedPercent: vmStat.UsedPercent,
		ProcessResidentMB: int64(memInfo.RSS / 1024 / 1024), //nolint:gosec // bounded by host memory
		ProcessVirtualMB:  int64(memInfo.VMS / 1024 / 1024), //nolint:gosec // bounded by address space
	}, nil
}
