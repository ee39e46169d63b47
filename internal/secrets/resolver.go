// Package secrets resolves a session's connection parameters into the
// environment handed to the completion backend. Parameter values may be
// literals or references like env(VAR_NAME) and vault(path#key); references
// are resolved at call time and never persisted.
package secrets

import (
	"context"
	"fmt"
	"strings"
)

// Resolver resolves secret references to their values.
type Resolver interface {
	// Resolve looks up a secret reference and returns its value. The ref
	// format depends on the implementation (e.g., "env(VAR_NAME)").
	Resolve(ctx context.Context, ref string) (string, error)
}

// refSchemes lists the reference forms the built-in resolvers understand.
var refSchemes = []string{"env", "vault"}

// refPayload extracts the payload of a scheme(payload) reference.
func refPayload(ref, scheme string) (string, bool) {
	prefix := scheme + "("
	if !strings.HasPrefix(ref, prefix) || !strings.HasSuffix(ref, ")") {
		return "", false
	}
	return ref[len(prefix) : len(ref)-1], true
}

// IsRef reports whether a parameter value is a secret reference rather than
// a literal.
func IsRef(value string) bool {
	for _, scheme := range refSchemes {
		if _, ok := refPayload(value, scheme); ok {
			return true
		}
	}
	return false
}

// SchemeResolver routes each reference to the resolver registered for its
// scheme, so env() and vault() references can coexist in one parameter map.
type SchemeResolver struct {
	schemes map[string]Resolver
}

// NewSchemeResolver creates an empty scheme router.
func NewSchemeResolver() *SchemeResolver {
	return &SchemeResolver{schemes: make(map[string]Resolver)}
}

// Register binds a scheme to a resolver, replacing any previous binding.
func (r *SchemeResolver) Register(scheme string, inner Resolver) {
	r.schemes[scheme] = inner
}

// Resolve routes the reference by its scheme prefix.
func (r *SchemeResolver) Resolve(ctx context.Context, ref string) (string, error) {
	for scheme, inner := range r.schemes {
		if _, ok := refPayload(ref, scheme); ok {
			return inner.Resolve(ctx, ref)
		}
	}
	return "", fmt.Errorf("unsupported secret reference format: %q", ref)
}

// Sink receives every resolved secret value, typically a log redaction
// filter.
type Sink interface {
	AddSecret(value string)
}

// RedactingResolver registers each resolved value with a sink before
// returning it, so secrets are scrubbed from logs the moment they exist.
type RedactingResolver struct {
	inner Resolver
	sink  Sink
}

// NewRedactingResolver wraps a resolver with secret registration.
func NewRedactingResolver(inner Resolver, sink Sink) *RedactingResolver {
	return &RedactingResolver{inner: inner, sink: sink}
}

// Resolve delegates to the wrapped resolver and registers the result.
func (r *RedactingResolver) Resolve(ctx context.Context, ref string) (string, error) {
	value, err := r.inner.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	r.sink.AddSecret(value)
	return value, nil
}
