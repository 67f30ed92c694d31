package core

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/google/uuid"
)

// DefaultSessionID is used by clients that do not send a session id.
const DefaultSessionID = "default"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// NormalizeSessionID maps an empty id to DefaultSessionID and rejects malformed ids.
func NormalizeSessionID(sessionID string) (string, error) {
	if sessionID == "" {
		return DefaultSessionID, nil
	}
	if !sessionIDPattern.MatchString(sessionID) {
		return "", fmt.Errorf("%w: session id must be 1-64 characters of letters, digits, '-' or '_'", ErrValidation)
	}
	return sessionID, nil
}

func newSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// sessionLocks hands out one mutex per session id and forgets it once unused.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// lock blocks until the session is free and returns the matching unlock function.
func (l *sessionLocks) lock(sessionID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[sessionID]
	if !ok {
		entry = &sessionLock{}
		l.locks[sessionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, sessionID)
		}
		l.mu.Unlock()
	}
}

func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
