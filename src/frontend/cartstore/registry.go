package cartstore

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abahm00/shopwise-clone/src/frontend/identity"
	"github.com/abahm00/shopwise-clone/src/frontend/localstore"
	"github.com/abahm00/shopwise-clone/src/frontend/model"
)

// DefaultIdleTimeout is how long a session's cart stays in memory without a request.
const DefaultIdleTimeout = 30 * time.Minute

type entry struct {
	store    *Store
	lastUsed time.Time
}

// Registry hands out the Store of each browser session and drops the ones nobody has
// used for the idle timeout. Dropping a Store loses nothing: the cart is always persisted.
type Registry struct {
	storage localstore.Storage
	ids     identity.Client
	log     logrus.FieldLogger
	idle    time.Duration
	now     func() time.Time

	mu     sync.Mutex
	stores map[string]*entry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry starts the idle janitor; it runs until ctx is done or Close is called.
func NewRegistry(ctx context.Context, storage localstore.Storage, ids identity.Client, log logrus.FieldLogger, idle time.Duration) *Registry {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	ctx, cancel := context.WithCancel(ctx)
	r := &Registry{
		storage: storage,
		ids:     ids,
		log:     log,
		idle:    idle,
		now:     time.Now,
		stores:  make(map[string]*entry),
		cancel:  cancel,
	}
	r.wg.Add(1)
	go r.janitor(ctx)
	return r
}

// Acquire returns the Store of sess, loading its cart first when the store is new or was
// last loaded for a different identity. It waits for a load in flight.
func (r *Registry) Acquire(ctx context.Context, sess Session) (*Store, error) {
	r.mu.Lock()
	e, ok := r.stores[sess.ID]
	if !ok {
		e = &entry{store: New(r.storage, r.ids, r.log)}
		r.stores[sess.ID] = e
	}
	e.lastUsed = r.now()
	r.mu.Unlock()

	s := e.store
	if s.Owner() != sess.owner() {
		s.OnIdentityChange(context.WithoutCancel(ctx), sess)
	}
	return s, s.Wait(ctx)
}

// IdentityChanged is the session listener: a live Store reloads for the new identity.
// Sessions without a Store load lazily on their next Acquire.
func (r *Registry) IdentityChanged(ctx context.Context, sessionID string, user *model.User) {
	r.mu.Lock()
	e, ok := r.stores[sessionID]
	r.mu.Unlock()
	if !ok {
		return
	}
	e.store.OnIdentityChange(context.WithoutCancel(ctx), Session{ID: sessionID, User: user})
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

func (r *Registry) janitor(ctx context.Context) {
	defer r.wg.Done()
	interval := r.idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.evictIdle(r.now()); n > 0 {
				r.log.Debugf("[cart registry] evicted %d idle sessions", n)
			}
		}
	}
}

func (r *Registry) evictIdle(now time.Time) int {
	r.mu.Lock()
	var idle []*Store
	for id, e := range r.stores {
		if now.Sub(e.lastUsed) >= r.idle {
			idle = append(idle, e.store)
			delete(r.stores, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

// Close stops the janitor and cancels every load in flight.
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()

	r.mu.Lock()
	stores := make([]*Store, 0, len(r.stores))
	for _, e := range r.stores {
		stores = append(stores, e.store)
	}
	r.mu.Unlock()

	for _, s := range stores {
		s.Close()
	}
}
