package session

import (
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/google/uuid"
)

// Options configures a Registry.
type Options struct {
	// IdleTTL evicts sessions not seen for this long. Zero keeps them forever.
	IdleTTL time.Duration
	// LoadWait bounds how long a mutation waits for a pending cart load.
	LoadWait time.Duration
	Now      func() time.Time
}

// Registry maps session ids to sessions. Eviction of idle sessions happens
// lazily while handling Get.
type Registry struct {
	syncer Syncer
	logg   *logger.Logger
	opts   Options

	mu        sync.Mutex
	sessions  map[string]*Session
	lastSweep time.Time
}

func NewRegistry(syncer Syncer, logg *logger.Logger, opts Options) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		syncer:    syncer,
		logg:      logg,
		opts:      opts,
		sessions:  make(map[string]*Session),
		lastSweep: opts.Now(),
	}
}

// NewID returns a fresh opaque session id.
func NewID() string {
	return uuid.NewString()
}

// Get returns the session for id, creating it on first use. A blank id gets a new one.
func (r *Registry) Get(id string) *Session {
	id = strings.TrimSpace(id)
	if id == "" {
		id = NewID()
	}
	now := r.opts.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked(now)

	sess, ok := r.sessions[id]
	if !ok {
		sess = newSession(id, r.syncer, r.logg, r.opts.LoadWait, now)
		r.sessions[id] = sess
		return sess
	}
	sess.touch(now)
	return sess
}

// Len reports how many sessions are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) sweepLocked(now time.Time) {
	if r.opts.IdleTTL <= 0 || now.Sub(r.lastSweep) < r.opts.IdleTTL/2 {
		return
	}
	r.lastSweep = now
	for id, sess := range r.sessions {
		if sess.idleSince(now) >= r.opts.IdleTTL {
			delete(r.sessions, id)
		}
	}
}
