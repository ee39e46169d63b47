package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	metadataFile = "session.json"
	contextFile  = "context.log"

	// turnSeparator terminates each recorded turn so the accumulated log
	// reads as discrete entries.
	turnSeparator = "\n"
)

// FSStore is the filesystem session store. Every mutating method assumes the
// caller holds the session's lock; the store itself performs no locking.
type FSStore struct {
	root string
	now  func() time.Time
}

// NewFSStore creates a store rooted at dir. The root is created on first
// Create; a missing root reads as "no sessions".
func NewFSStore(dir string) *FSStore {
	return &FSStore{root: dir, now: time.Now}
}

// Root returns the store's root directory.
func (s *FSStore) Root() string { return s.root }

// Dir returns the directory holding one session's state.
func (s *FSStore) Dir(name string) string {
	return filepath.Join(s.root, name)
}

func (s *FSStore) metadataPath(name string) string {
	return filepath.Join(s.root, name, metadataFile)
}

func (s *FSStore) contextPath(name string) string {
	return filepath.Join(s.root, name, contextFile)
}

// Create persists a new session with zero turns and an empty context.
// The session directory is the existence marker: os.Mkdir is the atomic
// create-if-absent that resolves concurrent creates of the same name.
func (s *FSStore) Create(name string, opts CreateOptions) (*Session, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions root: %w", err)
	}
	if err := os.Mkdir(s.Dir(name), 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %q", ErrExists, name)
		}
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	now := s.now().UTC()
	sess := &Session{
		Name:             name,
		Role:             opts.Role,
		SystemPrompt:     opts.SystemPrompt,
		CreatedAt:        now,
		LastActiveAt:     now,
		ConnectionParams: opts.ConnectionParams,
		Tags:             opts.Tags,
		Workspace:        opts.Workspace,
	}
	if err := s.writeMetadata(sess); err != nil {
		_ = os.RemoveAll(s.Dir(name))
		return nil, err
	}
	if err := os.WriteFile(s.contextPath(name), nil, 0o644); err != nil {
		_ = os.RemoveAll(s.Dir(name))
		return nil, fmt.Errorf("create context log: %w", err)
	}
	return sess, nil
}

// Get loads a session's metadata record.
func (s *FSStore) Get(name string) (*Session, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	data, err := os.ReadFile(s.metadataPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read session %q: %w", name, err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %q: %w", name, err)
	}
	return &sess, nil
}

// List returns all sessions matching the filter, sorted by name so repeated
// calls over unchanged state are deterministic.
func (s *FSStore) List(filter Filter) ([]*Session, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions root: %w", err)
	}

	var result []*Session
	for _, e := range entries {
		if !e.IsDir() || !ValidName(e.Name()) {
			continue
		}
		sess, err := s.Get(e.Name())
		if err != nil {
			// A directory without a readable metadata record is a
			// half-created or half-deleted session; skip it.
			continue
		}
		if filter.Matches(sess) {
			result = append(result, sess)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Delete irreversibly removes all persisted state for the session, including
// any lock marker inside its directory.
func (s *FSStore) Delete(name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, err := os.Stat(s.Dir(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return fmt.Errorf("stat session %q: %w", name, err)
	}
	if err := os.RemoveAll(s.Dir(name)); err != nil {
		return fmt.Errorf("delete session %q: %w", name, err)
	}
	return nil
}

// Context returns the session's full conversation log.
func (s *FSStore) Context(name string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	data, err := os.ReadFile(s.contextPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return "", fmt.Errorf("read context %q: %w", name, err)
	}
	return string(data), nil
}

// ContextPreview returns up to max trailing bytes of the conversation log.
func (s *FSStore) ContextPreview(name string, max int) (string, error) {
	full, err := s.Context(name)
	if err != nil {
		return "", err
	}
	if len(full) > max {
		return full[len(full)-max:], nil
	}
	return full, nil
}

// RecordTurn appends one completed user/assistant turn to the context log and
// updates the activity metadata (messageCount+1, lastActiveAt=now) as one
// logical unit. If the log is empty the startMarker is written first as the
// conversation-start entry. The caller must hold the session lock; under it,
// the append and the metadata write are never observed separately by other
// well-behaved accessors. Returns the post-increment message count.
func (s *FSStore) RecordTurn(name, userText, assistantText, startMarker string) (int, error) {
	sess, err := s.Get(name)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(s.contextPath(name), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open context %q: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat context %q: %w", name, err)
	}

	var entry string
	if info.Size() == 0 && startMarker != "" {
		entry = startMarker + "\n"
	}
	entry += "User: " + userText + "\n" + "Assistant: " + assistantText + "\n" + turnSeparator
	if _, err := f.WriteString(entry); err != nil {
		return 0, fmt.Errorf("append context %q: %w", name, err)
	}

	sess.MessageCount++
	sess.LastActiveAt = s.now().UTC()
	if err := s.writeMetadata(sess); err != nil {
		return 0, err
	}
	return sess.MessageCount, nil
}

// ClearContext empties the conversation log and zeroes messageCount while
// leaving identity fields (name, role, createdAt, connection params) intact.
func (s *FSStore) ClearContext(name string) error {
	sess, err := s.Get(name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.contextPath(name), nil, 0o644); err != nil {
		return fmt.Errorf("truncate context %q: %w", name, err)
	}
	sess.MessageCount = 0
	return s.writeMetadata(sess)
}

// writeMetadata persists the metadata record via rename so a crash mid-write
// never leaves a torn session.json behind.
func (s *FSStore) writeMetadata(sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %q: %w", sess.Name, err)
	}
	data = append(data, '\n')

	path := s.metadataPath(sess.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session %q: %w", sess.Name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit session %q: %w", sess.Name, err)
	}
	return nil
}
