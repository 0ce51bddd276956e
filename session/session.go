// Package session tracks who is signed in and which papers each visitor has already viewed.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"

	"researchhub/mirror"
	"researchhub/models"
	"researchhub/utils"
)

// Session is one visitor. The viewed set lives only in memory.
type Session struct {
	ID        string
	CreatedAt time.Time

	user   *models.User
	admin  bool
	viewed map[string]struct{}
	mu     sync.RWMutex
}

// New creates an anonymous session.
func New() *Session {
	return &Session{
		ID:        utils.GenerateDashlessUUID(),
		CreatedAt: time.Now().UTC(),
		viewed:    make(map[string]struct{}),
	}
}

// HasViewed reports whether paperID was already viewed in this session.
func (s *Session) HasViewed(paperID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.viewed[paperID]
	return ok
}

// MarkViewed records paperID as viewed. It returns false if it already was.
func (s *Session) MarkViewed(paperID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.viewed[paperID]; ok {
		return false
	}
	s.viewed[paperID] = struct{}{}
	return true
}

// UnmarkViewed forgets a view, used when counting it failed.
func (s *Session) UnmarkViewed(paperID string) {
	s.mu.Lock()
	delete(s.viewed, paperID)
	s.mu.Unlock()
}

// Login attaches user to the session. The password is never kept.
func (s *Session) Login(user models.User, admin bool) {
	u := user.Public()
	s.mu.Lock()
	s.user = &u
	s.admin = admin
	s.mu.Unlock()
}

// Logout clears the user but keeps the viewed set.
func (s *Session) Logout() {
	s.mu.Lock()
	s.user = nil
	s.admin = false
	s.mu.Unlock()
}

// User returns the signed-in user, if any.
func (s *Session) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// IsAdmin reports whether the session belongs to the administrator.
func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin
}

// Store holds live sessions by ID. A session expires ttl after its last token was
// issued, matching the token lifetime; past maxSessions the least recently used goes first.
type Store struct {
	sessions *expirable.LRU[string, *Session]
}

// NewStore creates an empty store.
func NewStore(maxSessions int, ttl time.Duration) *Store {
	return &Store{sessions: expirable.NewLRU[string, *Session](maxSessions, nil, ttl)}
}

// Create registers and returns a new anonymous session.
func (st *Store) Create() *Session {
	s := New()
	st.sessions.Add(s.ID, s)
	return s
}

// Renew restarts the expiry clock of s. Call it whenever a new token is issued for s.
func (st *Store) Renew(s *Session) {
	st.sessions.Add(s.ID, s)
}

// Get looks up a live session.
func (st *Store) Get(id string) (*Session, bool) {
	return st.sessions.Get(id)
}

// Remove drops a session.
func (st *Store) Remove(id string) {
	st.sessions.Remove(id)
}

// Len returns the number of sessions held, including expired ones not yet swept.
func (st *Store) Len() int {
	return st.sessions.Len()
}

// Persist writes user to the mirror as the current user.
func Persist(ctx context.Context, m mirror.Mirror, user models.User) error {
	return mirror.SetJSON(ctx, m, mirror.KeyCurrentUser, user.Public())
}

// Forget removes the persisted current user.
func Forget(ctx context.Context, m mirror.Mirror) error {
	return m.Delete(ctx, mirror.KeyCurrentUser)
}

// Restore reads the last persisted user. Unreadable data is logged and ignored.
func Restore(ctx context.Context, m mirror.Mirror) (models.User, bool) {
	var u models.User
	found, err := mirror.GetJSON(ctx, m, mirror.KeyCurrentUser, &u)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring unreadable persisted session")
		return models.User{}, false
	}
	if !found || u.Email == "" {
		return models.User{}, false
	}
	return u, true
}
