package secrets

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
)

// envParamPrefix namespaces connection parameters in the backend's
// environment: the parameter "project" becomes PODIUM_PROJECT.
const envParamPrefix = "PODIUM_"

// EnvResolver resolves secret references of the form "env(VAR_NAME)" by
// reading from the process environment.
type EnvResolver struct{}

// NewEnvResolver creates an environment variable secret resolver.
func NewEnvResolver() *EnvResolver {
	return &EnvResolver{}
}

// Resolve looks up an env() reference and returns the value.
func (r *EnvResolver) Resolve(_ context.Context, ref string) (string, error) {
	varName, ok := refPayload(ref, "env")
	if !ok {
		return "", fmt.Errorf("unsupported secret reference format: %q (expected env(VAR_NAME))", ref)
	}

	value, ok := os.LookupEnv(varName)
	if !ok {
		return "", fmt.Errorf("environment variable %q not set", varName)
	}

	return value, nil
}

// BuildEnv turns connection parameters into environment entries for the
// completion backend, resolving any env() references through the resolver.
// Output is sorted for determinism.
func BuildEnv(ctx context.Context, r Resolver, params map[string]string) ([]string, error) {
	env := make([]string, 0, len(params))
	for key, value := range params {
		if IsRef(value) {
			resolved, err := r.Resolve(ctx, value)
			if err != nil {
				return nil, fmt.Errorf("resolve parameter %q: %w", key, err)
			}
			value = resolved
		}
		name := envParamPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		env = append(env, name+"="+value)
	}
	sort.Strings(env)
	return env, nil
}
