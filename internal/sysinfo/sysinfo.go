// Package sysinfo collects the point-in-time host snapshot returned by
// get_system_status. Every probe degrades independently: a field that cannot
// be read is reported as absent, never as a failed call.
package sysinfo

import (
	"context"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Backend probe outcomes.
const (
	ProbeReachable   = "reachable"
	ProbeUnreachable = "unreachable"
	ProbeUnknown     = "unknown"
)

// HostInfo identifies the machine.
type HostInfo struct {
	Hostname      string `json:"hostname"`
	Platform      string `json:"platform,omitempty"`
	UptimeSeconds uint64 `json:"uptimeSeconds"`
}

// LoadInfo is the 1/5/15-minute load average.
type LoadInfo struct {
	Load1  float64 `json:"load1"`
	Load5  float64 `json:"load5"`
	Load15 float64 `json:"load15"`
}

// Snapshot is the collected host state. Nil sections mean the probe was
// unavailable on this platform.
type Snapshot struct {
	Host              *HostInfo `json:"host,omitempty"`
	Load              *LoadInfo `json:"load,omitempty"`
	MemoryUsedPercent *float64  `json:"memoryUsedPercent,omitempty"`
	DiskUsedPercent   *float64  `json:"diskUsedPercent,omitempty"`
}

// Collect gathers the host snapshot. It never fails; unavailable probes
// leave their section nil.
func Collect(ctx context.Context) *Snapshot {
	snap := &Snapshot{}

	if info, err := host.InfoWithContext(ctx); err == nil {
		snap.Host = &HostInfo{
			Hostname:      info.Hostname,
			Platform:      info.Platform,
			UptimeSeconds: info.Uptime,
		}
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		snap.Load = &LoadInfo{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		p := vm.UsedPercent
		snap.MemoryUsedPercent = &p
	}
	if du, err := disk.UsageWithContext(ctx, "/"); err == nil {
		p := du.UsedPercent
		snap.DiskUsedPercent = &p
	}
	return snap
}

// Probe checks backend reachability with a bounded-time HTTP request. Any
// HTTP status counts as reachable (an unauthorized response still proves the
// endpoint exists); transport failures are unreachable; an empty URL means
// the probe capability is absent and reports unknown.
func Probe(ctx context.Context, url string, timeout time.Duration) string {
	if url == "" {
		return ProbeUnknown
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return ProbeUnknown
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return ProbeUnreachable
	}
	defer resp.Body.Close()
	return ProbeReachable
}
