// Package manager routes decoded JSON-RPC requests to session operations.
// It owns the method table, parameter contracts, and the translation of
// domain failures onto the wire error codes.
package manager

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/okhalid/podium/internal/completion"
	"github.com/okhalid/podium/internal/config"
	"github.com/okhalid/podium/internal/jsonrpc"
	"github.com/okhalid/podium/internal/lockfile"
	"github.com/okhalid/podium/internal/secrets"
	"github.com/okhalid/podium/internal/store"
	"github.com/okhalid/podium/internal/telemetry"
)

// Method names accepted on the wire.
const (
	MethodCreateSession    = "create_session"
	MethodDeleteSession    = "delete_session"
	MethodListSessions     = "list_sessions"
	MethodGetStatus        = "get_status"
	MethodSendMessage      = "send_message"
	MethodResetSession     = "reset_session"
	MethodBroadcastMessage = "broadcast_message"
	MethodGetSystemStatus  = "get_system_status"
)

// Manager wires the session store, lock manager, completion backend and
// secret resolver behind the method table. It holds no per-request state;
// one Manager serves one process invocation.
type Manager struct {
	cfg      *config.Config
	store    *store.FSStore
	locks    *lockfile.Manager
	invoker  completion.Invoker
	resolver secrets.Resolver
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager.
func New(cfg *config.Config, st *store.FSStore, locks *lockfile.Manager, invoker completion.Invoker, resolver secrets.Resolver, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		store:    st,
		locks:    locks,
		invoker:  invoker,
		resolver: resolver,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dispatch routes one decoded request and always returns a well-formed
// response; no failure inside a handler escapes as anything else.
func (m *Manager) Dispatch(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	log := telemetry.RequestLogger(ctx, m.logger, req.Method)
	start := m.now()

	result, rpcErr := m.route(ctx, req)
	if rpcErr != nil {
		log.Warn("request failed",
			"code", rpcErr.Code,
			"error", rpcErr.Message,
			"duration_ms", time.Since(start).Milliseconds())
		return jsonrpc.NewErrorResponse(req.ID, rpcErr)
	}
	log.Info("request complete", "duration_ms", time.Since(start).Milliseconds())
	return jsonrpc.NewResult(req.ID, result)
}

func (m *Manager) route(ctx context.Context, req *jsonrpc.Request) (any, *jsonrpc.Error) {
	switch req.Method {
	case MethodCreateSession:
		return dispatchTo(ctx, req.Params, m.createSession)
	case MethodDeleteSession:
		return dispatchTo(ctx, req.Params, m.deleteSession)
	case MethodListSessions:
		return dispatchTo(ctx, req.Params, m.listSessions)
	case MethodGetStatus:
		return dispatchTo(ctx, req.Params, m.getStatus)
	case MethodSendMessage:
		return dispatchTo(ctx, req.Params, m.sendMessage)
	case MethodResetSession:
		return dispatchTo(ctx, req.Params, m.resetSession)
	case MethodBroadcastMessage:
		return dispatchTo(ctx, req.Params, m.broadcastMessage)
	case MethodGetSystemStatus:
		return dispatchTo(ctx, req.Params, m.getSystemStatus)
	default:
		return nil, jsonrpc.Errorf(jsonrpc.CodeMethodNotFound, "method %q not found", req.Method)
	}
}

// dispatchTo decodes the raw params into the handler's parameter type and
// invokes it. Absent params decode as the zero value; handlers enforce their
// own required fields.
func dispatchTo[P any, R any](ctx context.Context, raw json.RawMessage, handler func(context.Context, *P) (R, *jsonrpc.Error)) (any, *jsonrpc.Error) {
	var params P
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidParams, "invalid params: %v", err)
		}
	}
	return handler(ctx, &params)
}

// mapLockError translates lock acquisition failures onto wire codes. Only a
// genuine timeout is a LockTimeout; cancellation and lock-file I/O failures
// are internal errors.
func mapLockError(err error) *jsonrpc.Error {
	if errors.Is(err, lockfile.ErrTimeout) {
		return jsonrpc.Errorf(jsonrpc.CodeLockTimeout, "%v", err)
	}
	return jsonrpc.Errorf(jsonrpc.CodeInternalError, "%v", err)
}

// mapStoreError translates store sentinels onto wire codes. Anything
// unrecognized is an internal error.
func mapStoreError(err error) *jsonrpc.Error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return jsonrpc.Errorf(jsonrpc.CodeSessionNotFound, "%v", err)
	case errors.Is(err, store.ErrExists):
		return jsonrpc.Errorf(jsonrpc.CodeSessionExists, "%v", err)
	case errors.Is(err, store.ErrInvalidName):
		return jsonrpc.Errorf(jsonrpc.CodeInvalidName, "%v", err)
	default:
		return jsonrpc.Errorf(jsonrpc.CodeInternalError, "%v", err)
	}
}
