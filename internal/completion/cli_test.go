package completion

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCLIInvokerEchoesOutput(t *testing.T) {
	inv := NewCLIInvoker(CLIConfig{Binary: "/bin/sh", Args: []string{"-c", "cat"}})

	res, err := inv.Invoke(context.Background(), "hello backend", 5*time.Second, nil)
	if err != nil {
		t.Fatalf("Invoke returned unexpected error: %v", err)
	}
	if res.Status != 0 {
		t.Errorf("Status = %d, want 0", res.Status)
	}
	if res.Output != "hello backend" {
		t.Errorf("Output = %q, want %q", res.Output, "hello backend")
	}
}

func TestCLIInvokerPassesEnv(t *testing.T) {
	inv := NewCLIInvoker(CLIConfig{Binary: "/bin/sh", Args: []string{"-c", `printf '%s' "$PODIUM_PROJECT"`}})

	res, err := inv.Invoke(context.Background(), "", 5*time.Second, []string{"PODIUM_PROJECT=atlas"})
	if err != nil {
		t.Fatalf("Invoke returned unexpected error: %v", err)
	}
	if res.Output != "atlas" {
		t.Errorf("Output = %q, want %q", res.Output, "atlas")
	}
}

func TestCLIInvokerNonZeroStatus(t *testing.T) {
	inv := NewCLIInvoker(CLIConfig{Binary: "/bin/sh", Args: []string{"-c", "echo boom >&2; exit 3"}})

	res, err := inv.Invoke(context.Background(), "", 5*time.Second, nil)
	if err != nil {
		t.Fatalf("a failing backend is a result, not an error: %v", err)
	}
	if res.Status != 3 {
		t.Errorf("Status = %d, want 3", res.Status)
	}
	if res.Output != "boom" {
		t.Errorf("Output = %q, want stderr diagnostics", res.Output)
	}
}

func TestCLIInvokerTimeout(t *testing.T) {
	inv := NewCLIInvoker(CLIConfig{Binary: "/bin/sh", Args: []string{"-c", "sleep 10"}})

	start := time.Now()
	_, err := inv.Invoke(context.Background(), "", 50*time.Millisecond, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Invoke error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout enforcement took %v; the subprocess was not killed", elapsed)
	}
}

func TestCLIInvokerMissingBinary(t *testing.T) {
	inv := NewCLIInvoker(CLIConfig{Binary: "/nonexistent/llm-backend"})

	_, err := inv.Invoke(context.Background(), "", time.Second, nil)
	if err == nil {
		t.Fatal("expected error for missing binary, got nil")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("a missing binary is not a timeout")
	}
}

func TestMockScriptedResponses(t *testing.T) {
	mock := NewMock(
		MockResponse{Output: "first"},
		MockResponse{Output: "second", Status: 2},
	)
	ctx := context.Background()

	res, err := mock.Invoke(ctx, "p1", time.Second, []string{"K=v"})
	if err != nil || res.Output != "first" {
		t.Fatalf("first Invoke = (%v, %v), want first", res, err)
	}

	res, err = mock.Invoke(ctx, "p2", time.Second, nil)
	if err != nil || res.Output != "second" || res.Status != 2 {
		t.Fatalf("second Invoke = (%v, %v), want second/status 2", res, err)
	}

	// Exhausted scripts repeat the last response.
	res, _ = mock.Invoke(ctx, "p3", time.Second, nil)
	if res.Output != "second" {
		t.Errorf("exhausted Invoke output = %q, want last response repeated", res.Output)
	}

	prompts := mock.Prompts()
	if len(prompts) != 3 || prompts[0] != "p1" || prompts[2] != "p3" {
		t.Errorf("Prompts = %v, want recorded in order", prompts)
	}
	if envs := mock.Envs(); len(envs) != 3 || envs[0][0] != "K=v" {
		t.Errorf("Envs = %v, want first env recorded", mock.Envs())
	}
}

func TestMockError(t *testing.T) {
	boom := errors.New("backend unreachable")
	mock := NewMock(MockResponse{Err: boom})

	_, err := mock.Invoke(context.Background(), "p", time.Second, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Invoke error = %v, want configured error", err)
	}
}
