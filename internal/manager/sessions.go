package manager

import (
	"context"

	"github.com/okhalid/podium/internal/jsonrpc"
	"github.com/okhalid/podium/internal/store"
)

type createParams struct {
	Name             string            `json:"name"`
	Role             string            `json:"role,omitempty"`
	SystemPrompt     string            `json:"systemPrompt,omitempty"`
	ConnectionParams map[string]string `json:"connectionParams,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	Workspace        string            `json:"workspace,omitempty"`
}

func (m *Manager) createSession(_ context.Context, p *createParams) (*store.Session, *jsonrpc.Error) {
	if p.Name == "" {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "name is required")
	}
	sess, err := m.store.Create(p.Name, store.CreateOptions{
		Role:             p.Role,
		SystemPrompt:     p.SystemPrompt,
		ConnectionParams: p.ConnectionParams,
		Tags:             p.Tags,
		Workspace:        p.Workspace,
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	return sess, nil
}

type nameParams struct {
	Name string `json:"name"`
}

type deleteResult struct {
	Deleted bool   `json:"deleted"`
	Name    string `json:"name"`
}

func (m *Manager) deleteSession(_ context.Context, p *nameParams) (*deleteResult, *jsonrpc.Error) {
	if p.Name == "" {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "name is required")
	}
	if err := m.store.Delete(p.Name); err != nil {
		return nil, mapStoreError(err)
	}
	return &deleteResult{Deleted: true, Name: p.Name}, nil
}

type listParams struct {
	Tag         string `json:"tag,omitempty"`
	MinMessages int    `json:"minMessages,omitempty"`
}

type listResult struct {
	Sessions []*store.Session `json:"sessions"`
	Total    int              `json:"total"`
}

func (m *Manager) listSessions(_ context.Context, p *listParams) (*listResult, *jsonrpc.Error) {
	sessions, err := m.store.List(store.Filter{Tag: p.Tag, MinMessages: p.MinMessages})
	if err != nil {
		return nil, mapStoreError(err)
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}
	return &listResult{Sessions: sessions, Total: len(sessions)}, nil
}

// contextPreviewBytes bounds how much of the conversation log get_status
// returns.
const contextPreviewBytes = 500

type statusResult struct {
	Session        *store.Session `json:"session"`
	Locked         bool           `json:"locked"`
	LockHolder     int            `json:"lockHolder,omitempty"`
	ContextPreview string         `json:"contextPreview"`
}

func (m *Manager) getStatus(_ context.Context, p *nameParams) (*statusResult, *jsonrpc.Error) {
	if p.Name == "" {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "name is required")
	}
	sess, err := m.store.Get(p.Name)
	if err != nil {
		return nil, mapStoreError(err)
	}
	preview, err := m.store.ContextPreview(p.Name, contextPreviewBytes)
	if err != nil {
		return nil, mapStoreError(err)
	}
	pid, held := m.locks.Holder(p.Name)
	return &statusResult{
		Session:        sess,
		Locked:         held,
		LockHolder:     pid,
		ContextPreview: preview,
	}, nil
}

type resetResult struct {
	Reset        bool   `json:"reset"`
	Name         string `json:"name"`
	MessageCount int    `json:"messageCount"`
}

// resetSession clears the conversation while keeping the session's identity.
// The clear mutates context, so it runs under the session lock like any
// other context mutation.
func (m *Manager) resetSession(ctx context.Context, p *nameParams) (*resetResult, *jsonrpc.Error) {
	if p.Name == "" {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "name is required")
	}
	if _, err := m.store.Get(p.Name); err != nil {
		return nil, mapStoreError(err)
	}
	if err := m.locks.Acquire(ctx, p.Name, m.cfg.LockTimeout()); err != nil {
		return nil, mapLockError(err)
	}
	defer m.locks.Release(p.Name)

	if err := m.store.ClearContext(p.Name); err != nil {
		return nil, mapStoreError(err)
	}
	return &resetResult{Reset: true, Name: p.Name, MessageCount: 0}, nil
}
