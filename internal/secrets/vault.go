package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// VaultResolver resolves "vault(path#key)" connection parameters against a
// Vault-compatible KV v2 store, for deployments where session credentials
// live in Vault rather than the conductor's environment. When the key is
// omitted the "value" key is read. It speaks the KV v2 REST surface over
// plain HTTP; podium needs one read verb, not the full Vault SDK.
//
// Resolved values are cached with a TTL. A broadcast fans one send_message
// out per target session, and targets sharing a connection parameter would
// otherwise each hit Vault for the same credential mid-broadcast.
type VaultResolver struct {
	// Address is the base URL of the Vault server.
	Address string

	// Token authenticates requests.
	Token string

	// MountPath is the KV v2 mount path (default: "secret").
	MountPath string

	// CacheTTL is how long resolved values stay cached (default: 5 minutes).
	CacheTTL time.Duration

	client *http.Client
	mu     sync.RWMutex
	cache  map[string]vaultCacheEntry
}

type vaultCacheEntry struct {
	value   string
	expires time.Time
}

// NewVaultResolver creates a Vault secret resolver.
func NewVaultResolver(address, token string) *VaultResolver {
	return &VaultResolver{
		Address:   strings.TrimRight(address, "/"),
		Token:     token,
		MountPath: "secret",
		CacheTTL:  5 * time.Minute,
		client:    &http.Client{Timeout: 10 * time.Second},
		cache:     make(map[string]vaultCacheEntry),
	}
}

// Resolve fetches a vault() reference, consulting the cache first. The value
// goes into the completion backend's environment and is never persisted with
// the session.
func (v *VaultResolver) Resolve(ctx context.Context, ref string) (string, error) {
	inner, ok := refPayload(ref, "vault")
	if !ok {
		return "", fmt.Errorf("unsupported secret reference format: %q (expected vault(path#key))", ref)
	}

	path, key := inner, "value"
	if idx := strings.Index(inner, "#"); idx >= 0 {
		path, key = inner[:idx], inner[idx+1:]
	}

	cacheKey := path + "#" + key
	v.mu.RLock()
	if entry, ok := v.cache[cacheKey]; ok && time.Now().Before(entry.expires) {
		v.mu.RUnlock()
		return entry.value, nil
	}
	v.mu.RUnlock()

	value, err := v.readKV(ctx, path, key)
	if err != nil {
		return "", err
	}

	v.mu.Lock()
	v.cache[cacheKey] = vaultCacheEntry{value: value, expires: time.Now().Add(v.CacheTTL)}
	v.mu.Unlock()

	return value, nil
}

// readKV performs one KV v2 read: GET /v1/{mount}/data/{path}.
func (v *VaultResolver) readKV(ctx context.Context, path, key string) (string, error) {
	url := fmt.Sprintf("%s/v1/%s/data/%s", v.Address, v.MountPath, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Vault-Token", v.Token)

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("vault request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vault error (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse vault response: %w", err)
	}

	val, ok := result.Data.Data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in vault secret at %s", key, path)
	}
	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("vault key %q at %s is not a string", key, path)
	}
	return s, nil
}
