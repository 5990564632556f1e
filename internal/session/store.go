// Package session holds resumable workflow state between otherwise-stateless
// invocations of the setup dialogue.
//
// A Store is an explicit instance owned by whoever drives the workflow; there
// is no package-level singleton. At most one session is active at a time,
// matching the single-workflow-per-process model.
package session

import (
	"regexp"
)

var validName = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Store keeps per-workflow key/value payloads plus the active workflow name.
// It is not safe for concurrent use; the workflow engine is the single writer.
type Store struct {
	active string
	data   map[string]map[string]any
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{data: make(map[string]map[string]any)}
}

// Begin marks name as the active session, creating its payload if needed.
// Malformed names are a no-op.
func (s *Store) Begin(name string) {
	if !validName.MatchString(name) {
		return
	}
	if _, ok := s.data[name]; !ok {
		s.data[name] = make(map[string]any)
	}
	s.active = name
}

// IsActive reports whether any session is currently active.
func (s *Store) IsActive() bool {
	return s.active != ""
}

// ActiveName returns the active session name, if any.
func (s *Store) ActiveName() (string, bool) {
	if s.active == "" {
		return "", false
	}
	return s.active, true
}

// Put stores a value under key in the named session's payload.
// Malformed names are a no-op.
func (s *Store) Put(name, key string, value any) {
	if !validName.MatchString(name) {
		return
	}
	payload, ok := s.data[name]
	if !ok {
		payload = make(map[string]any)
		s.data[name] = payload
	}
	payload[key] = value
}

// Get returns the payload for the named session. The second return is false
// when the session does not exist.
func (s *Store) Get(name string) (map[string]any, bool) {
	payload, ok := s.data[name]
	return payload, ok
}

// End removes all state for the named session and clears the active name if
// it matches. Malformed or unknown names are a no-op.
func (s *Store) End(name string) {
	if !validName.MatchString(name) {
		return
	}
	delete(s.data, name)
	if s.active == name {
		s.active = ""
	}
}
