package sysinfo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCollectNeverFails(t *testing.T) {
	snap := Collect(context.Background())
	if snap == nil {
		t.Fatal("Collect must always return a snapshot")
	}
	// On any supported platform at least the host section resolves.
	if snap.Host == nil {
		t.Skip("host probe unavailable on this platform")
	}
	if snap.Host.Hostname == "" {
		t.Error("Hostname must be populated when the host probe succeeds")
	}
}

func TestProbeReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if got := Probe(context.Background(), srv.URL, time.Second); got != ProbeReachable {
		t.Errorf("Probe = %q, want %q", got, ProbeReachable)
	}
}

func TestProbeUnauthorizedStillReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	// An unauthorized response proves the endpoint exists.
	if got := Probe(context.Background(), srv.URL, time.Second); got != ProbeReachable {
		t.Errorf("Probe = %q, want %q", got, ProbeReachable)
	}
}

func TestProbeUnreachable(t *testing.T) {
	// A closed server gives a transport failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	if got := Probe(context.Background(), url, time.Second); got != ProbeUnreachable {
		t.Errorf("Probe = %q, want %q", got, ProbeUnreachable)
	}
}

func TestProbeWithoutURL(t *testing.T) {
	if got := Probe(context.Background(), "", time.Second); got != ProbeUnknown {
		t.Errorf("Probe = %q, want %q", got, ProbeUnknown)
	}
}
