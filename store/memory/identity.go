// Package memory implements the credential store on an in-process map,
// for tests and local development.
package memory

import (
	"context"
	"sync"
	"time"

	campusauth "github.com/campuskit/campusauth"
)

// IdentityStore is a mutex-guarded map keyed by identity id with an email
// index. Records are copied on the way in and out so callers never share
// pointers with the store.
type IdentityStore struct {
	mu      sync.RWMutex
	byID    map[string]campusauth.Identity
	byEmail map[string]string
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{
		byID:    make(map[string]campusauth.Identity),
		byEmail: make(map[string]string),
	}
}

func (s *IdentityStore) FindByEmail(_ context.Context, email string) (*campusauth.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, campusauth.ErrIdentityNotFound
	}
	identity := s.byID[id]
	return &identity, nil
}

func (s *IdentityStore) FindByID(_ context.Context, id string) (*campusauth.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.byID[id]
	if !ok {
		return nil, campusauth.ErrIdentityNotFound
	}
	return &identity, nil
}

func (s *IdentityStore) Create(_ context.Context, identity *campusauth.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[identity.Email]; exists {
		return campusauth.ErrEmailAlreadyRegistered
	}
	s.byID[identity.ID] = *identity
	s.byEmail[identity.Email] = identity.ID
	return nil
}

func (s *IdentityStore) Update(_ context.Context, identity *campusauth.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.byID[identity.ID]
	if !ok {
		return campusauth.ErrIdentityNotFound
	}
	if prev.Email != identity.Email {
		delete(s.byEmail, prev.Email)
		s.byEmail[identity.Email] = identity.ID
	}
	s.byID[identity.ID] = *identity
	return nil
}

func (s *IdentityStore) RecordLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.byID[id]
	if !ok {
		return campusauth.ErrIdentityNotFound
	}
	identity.LastLoginAt = at
	s.byID[id] = identity
	return nil
}
