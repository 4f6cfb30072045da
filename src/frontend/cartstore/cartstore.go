// Package cartstore owns the cart of one browser session. The cart lives in exactly one
// backing store at a time: the session's local storage for a guest, the identity record
// for a signed-in user. The two are never merged.
package cartstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/abahm00/shopwise-clone/src/frontend/identity"
	"github.com/abahm00/shopwise-clone/src/frontend/localstore"
	"github.com/abahm00/shopwise-clone/src/frontend/model"
	"github.com/abahm00/shopwise-clone/src/frontend/money"
)

var (
	ErrValidation = errors.New("cartstore: invalid selection")
	ErrFetch      = errors.New("cartstore: fetch failed")
	ErrPersist    = errors.New("cartstore: persist failed")
	// ErrSuperseded is the outcome of a load or mutation whose session identity changed
	// before it finished. Nothing is kept or written.
	ErrSuperseded = errors.New("cartstore: superseded by identity change")
)

// Messages shown to the shopper.
const (
	MsgFetchFailed   = "Failed to fetch cart items."
	MsgUpdateFailed  = "Failed to update cart."
	MsgRemoveFailed  = "Failed to remove item."
	MsgAddFailed     = "Failed to add product to cart."
	MsgSelectOptions = "Please select the required options."
)

// Session is the browser session an operation runs for. A nil User is a guest.
type Session struct {
	ID   string
	User *model.User
}

func (s Session) owner() string {
	if s.User == nil {
		return "guest"
	}
	return "user:" + s.User.ID.String()
}

type CheckoutResult int

const (
	CartEmpty CheckoutResult = iota
	CheckoutStarted
)

func (r CheckoutResult) String() string {
	if r == CheckoutStarted {
		return "Checking out!"
	}
	return "Your cart is empty!"
}

// Store is the in-memory cart of one browser session plus its user-visible error.
// Its mutex is never held across a call to a backing store.
type Store struct {
	storage localstore.Storage
	ids     identity.Client
	log     logrus.FieldLogger

	mu     sync.Mutex
	cart   []model.CartLine
	err    string
	gen    uint64
	owner  string
	cancel context.CancelFunc
	done   chan struct{}
	loads  sync.WaitGroup
}

func New(storage localstore.Storage, ids identity.Client, log logrus.FieldLogger) *Store {
	return &Store{
		storage: storage,
		ids:     ids,
		log:     log,
		cart:    []model.CartLine{},
	}
}

func (s *Store) backend(sess Session) backend {
	if sess.User != nil {
		return accountBackend{ids: s.ids, id: sess.User.ID}
	}
	return guestBackend{storage: s.storage, scope: sess.ID}
}

// ownedBy reports whether an operation for sess may touch the cart. A store that was
// never loaded accepts any session. Callers hold s.mu.
func (s *Store) ownedBy(sess Session) bool {
	return s.owner == "" || s.owner == sess.owner()
}

// begin starts a new load generation for sess and cancels the one in flight.
func (s *Store) begin(ctx context.Context, sess Session) (context.Context, uint64, chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	lctx, cancel := context.WithCancel(ctx)
	s.gen++
	s.cancel = cancel
	s.owner = sess.owner()
	s.done = make(chan struct{})
	return lctx, s.gen, s.done
}

// Load replaces the in-memory cart with the one in the authoritative store of sess.
// On failure the current cart is kept and MsgFetchFailed is set.
func (s *Store) Load(ctx context.Context, sess Session) error {
	lctx, gen, done := s.begin(ctx, sess)
	defer close(done)
	return s.load(lctx, sess, gen)
}

// OnIdentityChange reloads the cart for the new identity of the session. A load still
// running for the previous identity is cancelled and its result discarded. The returned
// channel yields the outcome once and is then closed.
func (s *Store) OnIdentityChange(ctx context.Context, sess Session) <-chan error {
	lctx, gen, done := s.begin(ctx, sess)
	out := make(chan error, 1)
	s.loads.Add(1)
	go func() {
		defer s.loads.Done()
		defer close(out)
		defer close(done)
		out <- s.load(lctx, sess, gen)
	}()
	return out
}

func (s *Store) load(ctx context.Context, sess Session, gen uint64) error {
	lines, err := s.backend(sess).read(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return ErrSuperseded
	}
	if err != nil {
		s.err = MsgFetchFailed
		s.log.WithField("session", sess.ID).Errorf("failed to load cart: %v", err)
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	s.cart = lines
	s.err = ""
	return nil
}

// Wait blocks until the most recent load has finished or ctx is done.
func (s *Store) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddOrIncrement adds quantity of p with the given variant. The authoritative store is
// re-read first, so a stale in-memory cart is not written back, but two overlapping calls
// can still lose one update. When persisting fails the merged cart stays in memory.
// If the identity of the session changes while the re-read is in flight the add is
// dropped with ErrSuperseded.
func (s *Store) AddOrIncrement(ctx context.Context, sess Session, p model.Product, quantity int, size, color string) error {
	if err := ValidateSelection(p, quantity, size, color); err != nil {
		return err
	}
	log := s.log.WithField("session", sess.ID).WithField("product", p.ID)
	b := s.backend(sess)

	s.mu.Lock()
	if !s.ownedBy(sess) {
		s.mu.Unlock()
		return ErrSuperseded
	}
	gen, owner := s.gen, s.owner
	s.mu.Unlock()

	current, err := b.read(ctx)
	if err != nil {
		if s.Owner() != owner {
			return ErrSuperseded
		}
		s.fail(MsgAddFailed)
		log.Errorf("failed to read cart before add: %v", err)
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	merged := mergeLine(current, model.NewCartLine(p, quantity, size, color))

	s.mu.Lock()
	if s.gen != gen || s.owner != owner {
		s.mu.Unlock()
		log.Debug("identity changed during add, dropping it")
		return ErrSuperseded
	}
	s.cart = merged
	s.mu.Unlock()

	if err := b.write(ctx, merged); err != nil {
		s.fail(MsgAddFailed)
		log.Errorf("failed to persist cart after add: %v", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.fail("")
	log.Debugf("added %d to cart", quantity)
	return nil
}

// SetQuantity sets the quantity of the line matching key. Quantities below 1 are rejected
// without touching anything. The in-memory change is not rolled back if persisting fails.
func (s *Store) SetQuantity(ctx context.Context, sess Session, key model.LineKey, n int) error {
	if n < 1 {
		return errors.Wrapf(ErrValidation, "quantity %d is below 1", n)
	}
	s.mu.Lock()
	if !s.ownedBy(sess) {
		s.mu.Unlock()
		return ErrSuperseded
	}
	for i := range s.cart {
		if s.cart[i].Key() == key {
			s.cart[i].Quantity = n
		}
	}
	snapshot := cloneLines(s.cart)
	s.mu.Unlock()

	return s.persist(ctx, sess, snapshot, MsgUpdateFailed)
}

// RemoveLine drops the line matching key and persists the rest, even when nothing matched.
func (s *Store) RemoveLine(ctx context.Context, sess Session, key model.LineKey) error {
	s.mu.Lock()
	if !s.ownedBy(sess) {
		s.mu.Unlock()
		return ErrSuperseded
	}
	kept := make([]model.CartLine, 0, len(s.cart))
	for _, l := range s.cart {
		if l.Key() != key {
			kept = append(kept, l)
		}
	}
	s.cart = kept
	snapshot := cloneLines(kept)
	s.mu.Unlock()

	return s.persist(ctx, sess, snapshot, MsgRemoveFailed)
}

func (s *Store) persist(ctx context.Context, sess Session, lines []model.CartLine, msg string) error {
	if err := s.backend(sess).write(ctx, lines); err != nil {
		s.fail(msg)
		s.log.WithField("session", sess.ID).Errorf("failed to persist cart: %v", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.fail("")
	return nil
}

func (s *Store) fail(msg string) {
	s.mu.Lock()
	s.err = msg
	s.mu.Unlock()
}

// Lines returns a copy of the cart in insertion order.
func (s *Store) Lines() []model.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLines(s.cart)
}

// Err is the message of the last failed operation, or "".
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Owner reports which identity the cart was last loaded for.
func (s *Store) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Total is the sum of price times quantity over all lines.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Total(s.cart)
}

func Total(lines []model.CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(money.LineTotal(l.Price, l.Quantity))
	}
	return sum
}

func (s *Store) Checkout() CheckoutResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cart) == 0 {
		return CartEmpty
	}
	return CheckoutStarted
}

// Close cancels a load still in flight and waits for it to return.
func (s *Store) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.loads.Wait()
}

func mergeLine(lines []model.CartLine, add model.CartLine) []model.CartLine {
	out := make([]model.CartLine, len(lines), len(lines)+1)
	copy(out, lines)
	for i := range out {
		if out[i].Key() == add.Key() {
			out[i].Quantity += add.Quantity
			return out
		}
	}
	return append(out, add)
}

func cloneLines(lines []model.CartLine) []model.CartLine {
	out := make([]model.CartLine, len(lines))
	copy(out, lines)
	return out
}
