package cart

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/83west/storefront/validate"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Registry hands out the single Store of each cart id. A cart is loaded from
// the Persister the first time it is opened and then served from memory.
// Stores idle for longer than Expiry are dropped by a background sweep until
// Stop is called; the next Open loads them again. A zero Expiry keeps every
// store.
type Registry struct {
	Expiry time.Duration

	persist Persister
	log     logrus.FieldLogger

	mu     sync.RWMutex
	stores map[string]*entry
	loads  singleflight.Group

	done chan struct{}
	once sync.Once
}

type entry struct {
	store      *Store
	lastAccess atomic.Int64
}

func (e *entry) touch(now time.Time) { e.lastAccess.Store(now.UnixNano()) }

type loaded struct {
	store *Store
	found bool
}

func NewRegistry(p Persister, log logrus.FieldLogger, expiry time.Duration) *Registry {
	r := &Registry{
		Expiry:  expiry,
		persist: p,
		log:     log,
		stores:  make(map[string]*entry),
		done:    make(chan struct{}),
	}
	if expiry > 0 {
		go r.refresh(time.Minute)
	}
	return r
}

// New opens a cart under a fresh id. Nothing is read from the Persister.
func (r *Registry) New(ctx context.Context) *Store {
	id := validate.GenerateID()
	return r.keep(id, newStore(id, r.persist, r.log))
}

// Open returns the store for id, keeping it for later calls. Concurrent first
// opens of the same id share one load. A failed load is returned to every
// caller waiting on it and nothing is kept, so the next Open tries again.
func (r *Registry) Open(ctx context.Context, id string) (*Store, error) {
	return r.open(ctx, id, true)
}

// Peek is Open for read-only callers. A cart that was never stored is served
// as an empty store that is not kept.
func (r *Registry) Peek(ctx context.Context, id string) (*Store, error) {
	return r.open(ctx, id, false)
}

func (r *Registry) open(ctx context.Context, id string, keep bool) (*Store, error) {
	if s, ok := r.cached(id); ok {
		return s, nil
	}

	v, err, _ := r.loads.Do(id, func() (interface{}, error) {
		if s, ok := r.cached(id); ok {
			return loaded{store: s, found: true}, nil
		}

		// The load is shared, so one caller going away must not fail the others.
		s, found, err := load(context.WithoutCancel(ctx), id, r.persist, r.log)
		if err != nil {
			return nil, err
		}
		if found {
			s = r.keep(id, s)
		}
		return loaded{store: s, found: found}, nil
	})
	if err != nil {
		return nil, err
	}

	l := v.(loaded)
	if !l.found && keep {
		return r.keep(id, l.store), nil
	}
	return l.store, nil
}

func (r *Registry) cached(id string) (*Store, bool) {
	r.mu.RLock()
	e, ok := r.stores[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.touch(time.Now())
	return e.store, true
}

// keep installs s under id unless a store is already there, and returns the
// one in place.
func (r *Registry) keep(id string, s *Store) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.stores[id]
	if !ok {
		e = &entry{store: s}
		r.stores[id] = e
	}
	e.touch(time.Now())
	return e.store
}

// Stop ends the background sweep. It is safe to call more than once.
func (r *Registry) Stop() {
	r.once.Do(func() { close(r.done) })
}

func (r *Registry) refresh(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-t.C:
			r.sweep(time.Now())
		}
	}
}

func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.stores {
		if now.Sub(time.Unix(0, e.lastAccess.Load())) > r.Expiry {
			delete(r.stores, id)
		}
	}
}

func (r *Registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}
