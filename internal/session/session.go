package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/cartsync"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// Syncer is the reconciliation surface a session needs.
type Syncer interface {
	LoadForUser(ctx context.Context, userID string) cartsync.LoadResult
	SaveForUser(ctx context.Context, userID string, state cart.State) cartsync.SaveResult
}

// Tag names the identity an async remote call was issued for.
type Tag struct {
	UserID     string
	Generation uint64
}

// Session binds one working cart to the identity currently using it.
//
// Remote writes for an identity are held back until that identity's initial
// load has resolved, and saves are issued under mu so they reach the remote
// table in mutation order.
type Session struct {
	id       string
	syncer   Syncer
	logg     *logger.Logger
	loadWait time.Duration

	mu         sync.Mutex
	store      *cart.Store
	identity   *auth.Identity
	generation uint64
	ready      chan struct{}

	lastSeen atomic.Int64
}

func newSession(id string, syncer Syncer, logg *logger.Logger, loadWait time.Duration, now time.Time) *Session {
	ready := make(chan struct{})
	close(ready)
	sess := &Session{
		id:       id,
		syncer:   syncer,
		logg:     logg,
		loadWait: loadWait,
		store:    cart.NewStore(),
		ready:    ready,
	}
	sess.touch(now)
	return sess
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Tag() Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tagLocked()
}

func (s *Session) tagLocked() Tag {
	tag := Tag{Generation: s.generation}
	if s.identity != nil {
		tag.UserID = s.identity.ID
	}
	return tag
}

// Identity returns a copy of the current identity, or nil when anonymous.
func (s *Session) Identity() *auth.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyIdentity(s.identity)
}

// Snapshot returns the local cart as it is now, loaded or not.
func (s *Session) Snapshot() cart.State {
	return s.store.Snapshot()
}

// SetIdentity switches the session to identity (nil for anonymous). The local
// cart is cleared and, for a signed-in user, replaced with their remote
// snapshot. The load runs without holding the session lock; its result is
// dropped if the identity changed again while it was in flight.
func (s *Session) SetIdentity(ctx context.Context, identity *auth.Identity) cartsync.LoadResult {
	s.mu.Lock()
	if s.identity.Equal(identity) {
		if identity != nil {
			s.identity = copyIdentity(identity)
		}
		s.mu.Unlock()
		return cartsync.LoadResult{Outcome: cartsync.OutcomeEmpty, Lines: []cart.Line{}}
	}
	s.generation++
	s.identity = copyIdentity(identity)
	s.store.Clear()
	ready := make(chan struct{})
	s.ready = ready
	tag := s.tagLocked()
	s.mu.Unlock()

	ctx = s.logg.WithFields(ctx, map[string]any{
		"session_id": s.id,
		"user_id":    tag.UserID,
		"generation": tag.Generation,
	})

	if identity == nil {
		close(ready)
		s.logg.Info(ctx, "session.identity_cleared")
		return cartsync.LoadResult{Outcome: cartsync.OutcomeEmpty, Lines: []cart.Line{}}
	}

	result := s.syncer.LoadForUser(ctx, tag.UserID)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(ready)

	if current := s.tagLocked(); current != tag {
		s.logg.Warn(s.logg.WithField(ctx, "current_generation", current.Generation), "session.stale_load_discarded")
		return result
	}
	s.store.ReplaceAll(result.Lines)
	s.logg.Info(s.logg.WithField(ctx, "outcome", string(result.Outcome)), "session.cart_loaded")
	return result
}

// MutationResult is the local snapshot after a mutation plus what the
// reconciliation write did with it.
type MutationResult struct {
	State cart.State
	Sync  cartsync.SaveResult
}

func (s *Session) Add(ctx context.Context, productID, title string, unitPrice decimal.Decimal, quantity int) (MutationResult, error) {
	return s.mutate(ctx, func(store *cart.Store) (cart.State, error) {
		return store.Add(productID, title, unitPrice, quantity)
	})
}

func (s *Session) Remove(ctx context.Context, productID string) (MutationResult, error) {
	return s.mutate(ctx, func(store *cart.Store) (cart.State, error) {
		return store.Remove(productID), nil
	})
}

func (s *Session) DecreaseQuantity(ctx context.Context, productID string) (MutationResult, error) {
	return s.mutate(ctx, func(store *cart.Store) (cart.State, error) {
		return store.DecreaseQuantity(productID), nil
	})
}

func (s *Session) Clear(ctx context.Context) (MutationResult, error) {
	return s.mutate(ctx, func(store *cart.Store) (cart.State, error) {
		return store.Clear(), nil
	})
}

// ErrIdentityChanged is returned by ClearAndSync when the session no longer
// belongs to the identity the caller read.
var ErrIdentityChanged = pkgerrors.New(pkgerrors.CodeConflict, "session identity changed")

// ClearAndSync empties the cart after a completed order and pushes the empty
// snapshot. Nothing is cleared or saved unless the session still carries tag.
func (s *Session) ClearAndSync(ctx context.Context, tag Tag) (cart.State, cartsync.SaveResult, error) {
	if err := s.lockLoaded(ctx); err != nil {
		return s.store.Snapshot(), cartsync.SaveResult{}, err
	}
	defer s.mu.Unlock()

	if current := s.tagLocked(); current != tag {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"session_id":         s.id,
			"user_id":            tag.UserID,
			"generation":         tag.Generation,
			"current_user_id":    current.UserID,
			"current_generation": current.Generation,
		}), "session.stale_clear_skipped")
		return s.store.Snapshot(), cartsync.SaveResult{}, ErrIdentityChanged
	}
	return s.applyLocked(ctx, func(store *cart.Store) (cart.State, error) {
		return store.Clear(), nil
	})
}

// Current waits for the cart to be loaded and returns it with the identity it
// belongs to and the tag of that identity.
func (s *Session) Current(ctx context.Context) (cart.State, *auth.Identity, Tag, error) {
	if err := s.lockLoaded(ctx); err != nil {
		return cart.State{}, nil, Tag{}, err
	}
	defer s.mu.Unlock()
	return s.store.Snapshot(), copyIdentity(s.identity), s.tagLocked(), nil
}

func (s *Session) mutate(ctx context.Context, fn func(*cart.Store) (cart.State, error)) (MutationResult, error) {
	if err := s.lockLoaded(ctx); err != nil {
		return MutationResult{State: s.store.Snapshot()}, err
	}
	defer s.mu.Unlock()

	state, sync, err := s.applyLocked(ctx, fn)
	return MutationResult{State: state, Sync: sync}, err
}

// applyLocked runs fn against the store and saves the result for the current
// identity. mu must be held.
func (s *Session) applyLocked(ctx context.Context, fn func(*cart.Store) (cart.State, error)) (cart.State, cartsync.SaveResult, error) {
	state, err := fn(s.store)
	if err != nil {
		return state, cartsync.SaveResult{}, err
	}

	userID := ""
	if s.identity != nil {
		userID = s.identity.ID
	}
	return state, s.syncer.SaveForUser(ctx, userID, state), nil
}

// lockLoaded returns with mu held once the current identity's load has
// resolved. On error mu is not held.
func (s *Session) lockLoaded(ctx context.Context) error {
	var timeout <-chan time.Time
	if s.loadWait > 0 {
		timer := time.NewTimer(s.loadWait)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		s.mu.Lock()
		ready := s.ready
		select {
		case <-ready:
			return nil
		default:
		}
		s.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "cart is still loading")
		case <-timeout:
			return pkgerrors.New(pkgerrors.CodeDependency, "timed out waiting for the cart to load")
		}
	}
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

func copyIdentity(identity *auth.Identity) *auth.Identity {
	if identity == nil {
		return nil
	}
	cp := *identity
	return &cp
}
