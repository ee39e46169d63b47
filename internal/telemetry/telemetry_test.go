package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	logger.Info("hello", "session", "r1")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if record["msg"] != "hello" || record["session"] != "r1" {
		t.Errorf("record = %v, want msg and session fields", record)
	}
}

func TestCorrelationIDGenerated(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "")
	id := CorrelationID(ctx)
	if id == "" {
		t.Fatal("expected a generated correlation ID")
	}
	// ULIDs are 26 characters of Crockford base32.
	if len(id) != 26 {
		t.Errorf("correlation ID %q has length %d, want 26", id, len(id))
	}
}

func TestCorrelationIDExplicit(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "conductor-7")
	if got := CorrelationID(ctx); got != "conductor-7" {
		t.Errorf("CorrelationID = %q, want %q", got, "conductor-7")
	}
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID on bare context = %q, want empty", got)
	}
}

func TestRequestLoggerCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	ctx := WithCorrelationID(context.Background(), "abc")

	RequestLogger(ctx, logger, "send_message").Info("done")

	out := buf.String()
	if !strings.Contains(out, `"method":"send_message"`) {
		t.Errorf("missing method field: %s", out)
	}
	if !strings.Contains(out, `"correlation_id":"abc"`) {
		t.Errorf("missing correlation_id field: %s", out)
	}
}

func TestRedactFilterScrubsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger, filter := NewRedactedLogger(&buf, slog.LevelInfo)
	filter.AddSecret("tok-supersecret")

	logger.Info("resolve failed for tok-supersecret", "detail", "value tok-supersecret rejected")

	out := buf.String()
	if strings.Contains(out, "tok-supersecret") {
		t.Fatalf("secret leaked into log output: %s", out)
	}
	if !strings.Contains(out, "***REDACTED***") {
		t.Errorf("expected redaction placeholder in %s", out)
	}
}

func TestRedactFilterSharedAcrossWith(t *testing.T) {
	var buf bytes.Buffer
	logger, filter := NewRedactedLogger(&buf, slog.LevelInfo)
	scoped := logger.With("component", "manager")

	// Secrets registered after With must still apply to derived loggers.
	filter.AddSecret("hunter2")
	scoped.Info("credential hunter2 in use")

	if strings.Contains(buf.String(), "hunter2") {
		t.Fatalf("secret leaked through derived logger: %s", buf.String())
	}
}

func TestRedactFilterEmptySecretIgnored(t *testing.T) {
	var buf bytes.Buffer
	logger, filter := NewRedactedLogger(&buf, slog.LevelInfo)
	filter.AddSecret("")

	logger.Info("plain message")
	if !strings.Contains(buf.String(), "plain message") {
		t.Errorf("empty secret must not mangle output: %s", buf.String())
	}
}
