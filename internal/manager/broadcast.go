package manager

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/okhalid/podium/internal/jsonrpc"
)

type broadcastParams struct {
	Sessions []string `json:"sessions"`
	Message  string   `json:"message"`
	Timeout  int      `json:"timeout,omitempty"`
}

type broadcastEntry struct {
	Session      string `json:"session"`
	Success      bool   `json:"success"`
	Response     string `json:"response,omitempty"`
	MessageIndex int    `json:"messageIndex,omitempty"`
	Error        string `json:"error,omitempty"`
}

type broadcastSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type broadcastResult struct {
	Results []broadcastEntry `json:"results"`
	Summary broadcastSummary `json:"summary"`
}

// broadcastMessage fans one message out to every named session concurrently
// and waits for all legs. Each leg is an ordinary sendMessage, so per-session
// locking still serializes legs that share a target while distinct targets
// proceed in parallel. A failed leg degrades only its own entry.
//
// There is deliberately no overall broadcast deadline: each leg is already
// bounded by its own lock timeout plus completion timeout, and the aggregate
// wait is bounded by the slowest leg.
func (m *Manager) broadcastMessage(ctx context.Context, p *broadcastParams) (*broadcastResult, *jsonrpc.Error) {
	if len(p.Sessions) == 0 {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "sessions must be a non-empty list")
	}
	if p.Message == "" {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "message is required")
	}

	results := make([]broadcastEntry, len(p.Sessions))
	g := new(errgroup.Group)
	for i, name := range p.Sessions {
		g.Go(func() error {
			res, rpcErr := m.sendMessage(ctx, &sendParams{
				Session: name,
				Message: p.Message,
				Timeout: p.Timeout,
			})
			if rpcErr != nil {
				results[i] = broadcastEntry{Session: name, Error: rpcErr.Message}
				return nil
			}
			results[i] = broadcastEntry{
				Session:      name,
				Success:      true,
				Response:     res.Response,
				MessageIndex: res.MessageIndex,
			}
			return nil
		})
	}
	// Legs never return errors; Wait is the fan-in barrier.
	_ = g.Wait()

	summary := broadcastSummary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}
	return &broadcastResult{Results: results, Summary: summary}, nil
}
