package memory

import (
	"context"
	"sync"
	"time"

	domainauth "rentchat/internal/domain/auth"
	domainuser "rentchat/internal/domain/user"
)

// UserRepository stores users in memory. Not suitable for production.
type UserRepository struct {
	mu      sync.RWMutex
	nextID  domainuser.ID
	byID    map[domainuser.ID]*domainuser.User
	byEmail map[string]domainuser.ID
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		nextID:  1,
		byID:    make(map[domainuser.ID]*domainuser.User),
		byEmail: make(map[string]domainuser.ID),
	}
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.byID[id]; ok {
		return cloneUser(u), nil
	}
	return nil, domainuser.ErrNotFound
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[domainuser.NormalizeEmail(email)]
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	if u, ok := r.byID[id]; ok {
		return cloneUser(u), nil
	}
	return nil, domainuser.ErrNotFound
}

func (r *UserRepository) Create(ctx context.Context, u *domainuser.User) error {
	if u == nil {
		return domainuser.ErrNotFound
	}
	emailKey := domainuser.NormalizeEmail(u.Email)
	if emailKey == "" {
		return domainuser.ErrEmailRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[emailKey]; ok {
		return domainuser.ErrEmailAlreadyUsed
	}
	u.ID = r.nextID
	r.nextID++
	r.byEmail[emailKey] = u.ID
	r.byID[u.ID] = cloneUser(u)
	return nil
}

func (r *UserRepository) Save(ctx context.Context, u *domainuser.User) error {
	if u == nil || u.ID <= 0 {
		return domainuser.ErrNotFound
	}
	emailKey := domainuser.NormalizeEmail(u.Email)
	if emailKey == "" {
		return domainuser.ErrEmailRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existingID, ok := r.byEmail[emailKey]; ok && existingID != u.ID {
		return domainuser.ErrEmailAlreadyUsed
	}
	r.byEmail[emailKey] = u.ID
	r.byID[u.ID] = cloneUser(u)
	return nil
}

func cloneUser(u *domainuser.User) *domainuser.User {
	out := *u
	out.Roles = append([]domainuser.Role(nil), u.Roles...)
	return &out
}

var _ domainuser.Repository = (*UserRepository)(nil)

// SessionStore keeps bearer sessions in memory.
type SessionStore struct {
	mu      sync.RWMutex
	byToken map[domainauth.Token]*domainauth.Session
	now     func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		byToken: make(map[domainauth.Token]*domainauth.Session),
		now:     time.Now,
	}
}

func (s *SessionStore) Put(ctx context.Context, session *domainauth.Session) error {
	if session == nil {
		return domainauth.ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *session
	s.byToken[session.Token] = &clone
	return nil
}

func (s *SessionStore) ByToken(ctx context.Context, token domainauth.Token) (*domainauth.Session, error) {
	s.mu.RLock()
	session, ok := s.byToken[token]
	s.mu.RUnlock()
	if !ok {
		return nil, domainauth.ErrSessionNotFound
	}
	if session.Expired(s.now()) {
		s.mu.Lock()
		delete(s.byToken, token)
		s.mu.Unlock()
		return nil, domainauth.ErrSessionNotFound
	}
	clone := *session
	return &clone, nil
}

func (s *SessionStore) Delete(ctx context.Context, token domainauth.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byToken, token)
	return nil
}

var _ domainauth.SessionStore = (*SessionStore)(nil)
