package session

import (
	"sync"

	"github.com/google/uuid"
)

// Session holds the identity markers for one logged-in client. It is an
// explicit object the access controller mutates, never ambient global state.
type Session struct {
	Authenticated bool   `json:"authenticated"`
	UserEmail     string `json:"user_email"`
	IsAdmin       bool   `json:"is_admin"`
}

// Set marks the session as authenticated for the given email.
func (s *Session) Set(email string, isAdmin bool) {
	s.Authenticated = true
	s.UserEmail = email
	s.IsAdmin = isAdmin
}

// Clear removes all identity markers.
func (s *Session) Clear() {
	s.Authenticated = false
	s.UserEmail = ""
	s.IsAdmin = false
}

// Store keeps live sessions in memory, keyed by an opaque token. It stands
// in for the host UI framework's session mechanism; tokens are random
// handles, not credentials.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create registers a new session and returns its token.
func (st *Store) Create(sess *Session) string {
	token := uuid.NewString()
	st.mu.Lock()
	st.sessions[token] = sess
	st.mu.Unlock()
	return token
}

// Get returns the session for the token, or nil when unknown.
func (st *Store) Get(token string) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[token]
}

// Delete forgets the token.
func (st *Store) Delete(token string) {
	st.mu.Lock()
	delete(st.sessions, token)
	st.mu.Unlock()
}
