package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okhalid/podium/internal/completion"
	"github.com/okhalid/podium/internal/jsonrpc"
	"github.com/okhalid/podium/internal/secrets"
)

// historyHeader frames the accumulated context when a session already has
// prior turns.
const historyHeader = "Conversation history:"

// historySeparator sits between the accumulated context and the new message.
const historySeparator = "---"

type sendParams struct {
	Session string `json:"session"`
	Message string `json:"message"`
	// Timeout bounds the completion call, in seconds. Zero means the
	// configured default.
	Timeout int `json:"timeout,omitempty"`
}

type sendResult struct {
	Session      string `json:"session"`
	Response     string `json:"response"`
	Timestamp    string `json:"timestamp"`
	MessageIndex int    `json:"messageIndex"`
}

// sendMessage runs one conversational turn: lock the session, build the
// outbound prompt from the accumulated context, invoke the completion
// backend, and record the turn. Failed completions consume the lock and the
// call but leave messageCount and context exactly as they were.
func (m *Manager) sendMessage(ctx context.Context, p *sendParams) (*sendResult, *jsonrpc.Error) {
	if p.Session == "" {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "session is required")
	}
	if p.Message == "" {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "message is required")
	}

	sess, err := m.store.Get(p.Session)
	if err != nil {
		return nil, mapStoreError(err)
	}

	params := m.connectionParams(sess.ConnectionParams)
	env, err := secrets.BuildEnv(ctx, m.resolver, params)
	if err != nil {
		return nil, jsonrpc.Errorf(jsonrpc.CodeInternalError, "%v", err)
	}
	if sess.SystemPrompt != "" {
		env = append(env, "PODIUM_SYSTEM_PROMPT="+sess.SystemPrompt)
	}

	timeout := m.cfg.ExecTimeout()
	if p.Timeout > 0 {
		timeout = time.Duration(p.Timeout) * time.Second
	}

	if err := m.locks.Acquire(ctx, p.Session, m.cfg.LockTimeout()); err != nil {
		return nil, mapLockError(err)
	}
	defer m.locks.Release(p.Session)

	// The context read feeds the prompt, so it happens inside the critical
	// section like the writes that follow.
	contextLog, err := m.store.Context(p.Session)
	if err != nil {
		return nil, mapStoreError(err)
	}

	res, err := m.invoker.Invoke(ctx, buildPrompt(contextLog, p.Message), timeout, env)
	if err != nil {
		if errors.Is(err, completion.ErrTimeout) {
			return nil, jsonrpc.Errorf(jsonrpc.CodeExecutionFailed, "Execution timeout after %ds", int(timeout.Seconds()))
		}
		return nil, jsonrpc.Errorf(jsonrpc.CodeExecutionFailed, "completion failed: %v", err)
	}
	if res.Status != 0 {
		rpcErr := jsonrpc.Errorf(jsonrpc.CodeExecutionFailed, "completion exited with status %d", res.Status)
		return nil, rpcErr.WithData(map[string]any{"status": res.Status, "output": res.Output})
	}

	now := m.now().UTC()
	marker := fmt.Sprintf("=== Conversation started %s ===", now.Format(time.RFC3339))
	count, err := m.store.RecordTurn(p.Session, p.Message, res.Output, marker)
	if err != nil {
		return nil, mapStoreError(err)
	}

	return &sendResult{
		Session:      p.Session,
		Response:     res.Output,
		Timestamp:    now.Format(time.RFC3339),
		MessageIndex: count,
	}, nil
}

// connectionParams merges the process-wide defaults with the session's own
// parameters; per-session values win.
func (m *Manager) connectionParams(own map[string]string) map[string]string {
	merged := make(map[string]string, len(m.cfg.DefaultConnection)+len(own))
	for k, v := range m.cfg.DefaultConnection {
		merged[k] = v
	}
	for k, v := range own {
		merged[k] = v
	}
	return merged
}

// buildPrompt assembles the outbound prompt. A first turn goes out verbatim;
// later turns carry the full accumulated context under the history framing.
func buildPrompt(contextLog, message string) string {
	if strings.TrimSpace(contextLog) == "" {
		return message
	}
	return historyHeader + "\n" + contextLog + historySeparator + "\n" + message
}
