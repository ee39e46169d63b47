// Package store persists podium sessions on a shared filesystem root: one
// directory per session holding a metadata record and an append-only
// conversation log. All cross-process state lives here; nothing is cached in
// memory between invocations.
package store

import (
	"errors"
	"regexp"
	"time"
)

// Sentinel errors for domain failures. The dispatcher maps these onto the
// wire error codes.
var (
	ErrNotFound    = errors.New("session not found")
	ErrExists      = errors.New("session already exists")
	ErrInvalidName = errors.New("invalid session name")
)

// namePattern is the identifier-safe charset for session names. Anything
// outside it is rejected before touching the filesystem, which also rules
// out path traversal.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidName reports whether name is an acceptable session name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Session is the persisted metadata record for one named conversation.
type Session struct {
	Name             string            `json:"name"`
	Role             string            `json:"role,omitempty"`
	SystemPrompt     string            `json:"systemPrompt,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	LastActiveAt     time.Time         `json:"lastActiveAt"`
	MessageCount     int               `json:"messageCount"`
	ConnectionParams map[string]string `json:"connectionParams,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	Workspace        string            `json:"workspace,omitempty"`
}

// HasTag reports whether the session carries the given tag.
func (s *Session) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// CreateOptions carries the optional fields accepted at session creation.
type CreateOptions struct {
	Role             string
	SystemPrompt     string
	ConnectionParams map[string]string
	Tags             []string
	Workspace        string
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Tag         string
	MinMessages int
}

// Matches reports whether the session passes the filter.
func (f Filter) Matches(s *Session) bool {
	if f.Tag != "" && !s.HasTag(f.Tag) {
		return false
	}
	if s.MessageCount < f.MinMessages {
		return false
	}
	return true
}
