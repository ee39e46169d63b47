package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/okhalid/podium/internal/config"
	"github.com/okhalid/podium/internal/jsonrpc"
	"github.com/okhalid/podium/internal/lockfile"
	"github.com/okhalid/podium/internal/manager"
	"github.com/okhalid/podium/internal/secrets"
	"github.com/okhalid/podium/internal/store"
	"github.com/okhalid/podium/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Handle one JSON-RPC request from stdin and respond on stdout",
		Long: `Reads exactly one JSON-RPC 2.0 document from stdin, executes it, and
writes exactly one response document to stdout. Every reachable failure
still produces a well-formed response; the exit status is zero unless
the response itself could not be written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}

			ctx := telemetry.WithCorrelationID(cmd.Context(), correlationID)
			m, err := buildManager(cfg, level)
			if err != nil {
				return err
			}
			return serveOnce(ctx, m, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// buildManager assembles the full stack from configuration. Resolved secret
// values are registered with the log redaction filter so connection
// credentials never reach stderr.
func buildManager(cfg *config.Config, level slog.Level) (*manager.Manager, error) {
	logger, filter := telemetry.NewRedactedLogger(os.Stderr, level)
	resolver, err := buildResolver(cfg, filter)
	if err != nil {
		return nil, err
	}
	return manager.New(
		cfg,
		store.NewFSStore(cfg.SessionsRoot),
		lockfile.NewManager(cfg.SessionsRoot),
		cfg.Invoker(),
		resolver,
		manager.WithLogger(logger),
	), nil
}

// buildResolver routes env() references to the process environment and, when
// an address is configured, vault() references to the Vault KV store. The
// vault token itself may be an env() reference.
func buildResolver(cfg *config.Config, filter *telemetry.RedactFilter) (secrets.Resolver, error) {
	envResolver := secrets.NewEnvResolver()
	router := secrets.NewSchemeResolver()
	router.Register("env", envResolver)

	if cfg.Vault.Address != "" {
		token := cfg.Vault.Token
		if secrets.IsRef(token) {
			resolved, err := envResolver.Resolve(context.Background(), token)
			if err != nil {
				return nil, fmt.Errorf("resolve vault token: %w", err)
			}
			token = resolved
			filter.AddSecret(token)
		}
		vault := secrets.NewVaultResolver(cfg.Vault.Address, token)
		if cfg.Vault.MountPath != "" {
			vault.MountPath = cfg.Vault.MountPath
		}
		router.Register("vault", vault)
	}
	return secrets.NewRedactingResolver(router, filter), nil
}

// serveOnce is the one-shot transport: one request in, one response out.
// Decode failures become protocol error responses, not process failures.
func serveOnce(ctx context.Context, m *manager.Manager, in io.Reader, out io.Writer) error {
	req, rpcErr := jsonrpc.Decode(in)

	var resp *jsonrpc.Response
	if rpcErr != nil {
		var id json.RawMessage
		if req != nil {
			id = req.ID
		}
		resp = jsonrpc.NewErrorResponse(id, rpcErr)
	} else {
		resp = m.Dispatch(ctx, req)
	}
	return jsonrpc.Encode(out, resp)
}
