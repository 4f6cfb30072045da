// Package session keeps the signed-in identity of each browser session and tells
// subscribers when it changes.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/abahm00/shopwise-clone/src/frontend/localstore"
	"github.com/abahm00/shopwise-clone/src/frontend/model"
)

// Listener is called after the identity of sessionID changed. user is nil after sign-out.
type Listener func(ctx context.Context, sessionID string, user *model.User)

type Store struct {
	storage localstore.Storage
	log     logrus.FieldLogger

	mu        sync.RWMutex
	listeners []Listener
}

func New(storage localstore.Storage, log logrus.FieldLogger) *Store {
	return &Store{storage: storage, log: log}
}

// Subscribe registers l for every later identity change. Listeners run synchronously,
// in registration order, on the goroutine that changed the identity.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Current returns the identity stored for sessionID, or nil for a guest. An unreadable
// record is treated as a guest.
func (s *Store) Current(ctx context.Context, sessionID string) (*model.User, error) {
	raw, err := s.storage.Get(ctx, sessionID, localstore.KeyUser)
	if errors.Is(err, localstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read session user")
	}
	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil || u.ID == "" {
		s.log.WithField("session", sessionID).Warnf("discarding unreadable session user: %v", err)
		return nil, nil
	}
	return &u, nil
}

// SignIn stores u as the identity of sessionID. The password is never kept.
func (s *Store) SignIn(ctx context.Context, sessionID string, u model.User) error {
	u.Password = ""
	raw, err := json.Marshal(u)
	if err != nil {
		return errors.Wrap(err, "encode session user")
	}
	if err := s.storage.Set(ctx, sessionID, localstore.KeyUser, raw); err != nil {
		return errors.Wrap(err, "write session user")
	}
	s.notify(ctx, sessionID, &u)
	return nil
}

// SignOut forgets the identity of sessionID. The guest cart of the session is left alone.
func (s *Store) SignOut(ctx context.Context, sessionID string) error {
	if err := s.storage.Delete(ctx, sessionID, localstore.KeyUser); err != nil {
		return errors.Wrap(err, "delete session user")
	}
	s.notify(ctx, sessionID, nil)
	return nil
}

func (s *Store) notify(ctx context.Context, sessionID string, u *model.User) {
	s.mu.RLock()
	ls := make([]Listener, len(s.listeners))
	copy(ls, s.listeners)
	s.mu.RUnlock()

	for _, l := range ls {
		l(ctx, sessionID, u)
	}
}
