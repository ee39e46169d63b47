package manager

import (
	"context"
	"time"

	"github.com/okhalid/podium/internal/jsonrpc"
	"github.com/okhalid/podium/internal/store"
	"github.com/okhalid/podium/internal/sysinfo"
)

// probeTimeout bounds the backend reachability check.
const probeTimeout = 3 * time.Second

type sessionCounts struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Idle   int `json:"idle"`
}

type systemStatusResult struct {
	*sysinfo.Snapshot
	Sessions  sessionCounts `json:"sessions"`
	Backend   string        `json:"backend"`
	Timestamp string        `json:"timestamp"`
}

type systemStatusParams struct{}

// getSystemStatus assembles the point-in-time snapshot. Probe failures
// degrade individual fields; the call itself never fails on them.
func (m *Manager) getSystemStatus(ctx context.Context, _ *systemStatusParams) (*systemStatusResult, *jsonrpc.Error) {
	sessions, err := m.store.List(store.Filter{})
	if err != nil {
		return nil, mapStoreError(err)
	}

	counts := sessionCounts{Total: len(sessions)}
	for _, sess := range sessions {
		if m.locks.Locked(sess.Name) {
			counts.Active++
		} else {
			counts.Idle++
		}
	}

	return &systemStatusResult{
		Snapshot:  sysinfo.Collect(ctx),
		Sessions:  counts,
		Backend:   sysinfo.Probe(ctx, m.cfg.ProbeURL, probeTimeout),
		Timestamp: m.now().UTC().Format(time.RFC3339),
	}, nil
}

// SystemStatus exposes the snapshot for the CLI status command, outside the
// RPC path.
func (m *Manager) SystemStatus(ctx context.Context) (any, error) {
	res, rpcErr := m.getSystemStatus(ctx, &systemStatusParams{})
	if rpcErr != nil {
		return nil, rpcErr
	}
	return res, nil
}
