// Package cache keeps an observable in-memory view of the memo store.
//
// Every operation clears the error, raises Loading, calls the store and
// lowers Loading again on every exit path. Overlapping calls are not
// serialized: each state mutation is atomic on its own, but two concurrent
// operations may interleave and the last one to finish wins. Only
// CreateMemo propagates errors to the caller; every other operation reports
// failures through State.Error.
package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/entrhq/memos/pkg/logging"
	"github.com/entrhq/memos/pkg/memo"
)

// State is a snapshot of the cache. Memos is a copy owned by the receiver.
type State struct {
	Memos   []memo.Memo
	Loading bool
	Error   error
}

func (s State) clone() State {
	out := s
	out.Memos = make([]memo.Memo, len(s.Memos))
	copy(out.Memos, s.Memos)
	return out
}

type subscriber struct {
	id int
	fn func(State)
}

// Cache mirrors the store for a single session.
type Cache struct {
	store memo.Store
	log   *logging.Logger

	// notifyMu serializes mutate-then-deliver so subscribers observe
	// snapshots in the order they were produced.
	notifyMu sync.Mutex

	mu          sync.Mutex
	state       State
	subscribers []subscriber
	nextID      int
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for operation tracing.
func WithLogger(l *logging.Logger) Option {
	return func(c *Cache) {
		c.log = l
	}
}

// New creates a cache over store. Call Activate before use.
func New(store memo.Store, opts ...Option) *Cache {
	c := &Cache{
		store: store,
		log:   logging.Discard(),
		state: State{Memos: []memo.Memo{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the current state.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe registers fn to receive a snapshot after every state change.
// Deliveries happen synchronously on the goroutine that made the change;
// fn must not call back into Cache operations. The returned function
// removes the subscription.
func (c *Cache) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.subscribers = append(c.subscribers, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, s := range c.subscribers {
				if s.id == id {
					c.subscribers = append(c.subscribers[:i:i], c.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

func (c *Cache) update(fn func(*State)) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	fn(&c.state)
	snapshot := c.state
	subs := make([]subscriber, len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(snapshot.clone())
	}
}

func (c *Cache) begin(clearError bool) {
	c.update(func(s *State) {
		if clearError {
			s.Error = nil
		}
		s.Loading = true
	})
}

func (c *Cache) fail(err error) {
	c.update(func(s *State) {
		s.Loading = false
		s.Error = err
	})
}

func (c *Cache) done(fn func(*State)) {
	c.update(func(s *State) {
		if fn != nil {
			fn(s)
		}
		s.Loading = false
	})
}

// Activate initializes the store and loads every memo into the cache.
// A failure is recorded in State.Error and returned.
func (c *Cache) Activate(ctx context.Context) error {
	c.begin(false)

	if err := c.store.Initialize(ctx); err != nil {
		c.log.Errorf("Failed to initialize storage: %v", err)
		err = fmt.Errorf("failed to initialize database: %w", err)
		c.fail(err)
		return err
	}

	memos, err := c.store.GetAll(ctx)
	if err != nil {
		c.log.Errorf("Failed to load memos: %v", err)
		err = fmt.Errorf("failed to initialize database: %w", err)
		c.fail(err)
		return err
	}

	c.log.Infof("Loaded %d memos", len(memos))
	c.done(func(s *State) { s.Memos = memos })
	return nil
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

// GetAllMemos reloads the cache from the store, replacing its contents.
func (c *Cache) GetAllMemos(ctx context.Context) {
	c.begin(true)

	memos, err := c.store.GetAll(ctx)
	if err != nil {
		c.log.Errorf("Failed to fetch memos: %v", err)
		c.fail(fmt.Errorf("failed to fetch memos: %w", err))
		return
	}

	c.done(func(s *State) { s.Memos = memos })
}

// GetMemoByID reads a memo straight from the store. It returns nil when
// the memo does not exist or the read fails.
func (c *Cache) GetMemoByID(ctx context.Context, id string) *memo.Memo {
	c.begin(true)

	m, err := c.store.GetByID(ctx, id)
	if err != nil {
		c.log.Errorf("Failed to fetch memo %s: %v", id, err)
		c.fail(fmt.Errorf("failed to fetch memo with ID %s: %w", id, err))
		return nil
	}

	c.done(nil)
	return m
}

// CreateMemo stores a new memo and appends it to the cache.
func (c *Cache) CreateMemo(ctx context.Context, text string) (*memo.Memo, error) {
	c.begin(true)

	m, err := c.store.Create(ctx, text)
	if err != nil {
		c.log.Errorf("Failed to create memo: %v", err)
		err = fmt.Errorf("failed to create memo: %w", err)
		c.fail(err)
		return nil, err
	}

	c.log.Debugf("Created memo %s", m.ID)
	created := *m
	c.done(func(s *State) { s.Memos = append(s.Memos, created) })
	return m, nil
}

// UpdateMemo replaces a memo's text. It returns nil when the memo does not
// exist or the write fails; only a failure sets State.Error.
func (c *Cache) UpdateMemo(ctx context.Context, id, text string) *memo.Memo {
	c.begin(true)

	m, err := c.store.Update(ctx, id, text)
	if err != nil {
		c.log.Errorf("Failed to update memo %s: %v", id, err)
		c.fail(fmt.Errorf("failed to update memo with ID %s: %w", id, err))
		return nil
	}
	if m == nil {
		c.log.Debugf("Update skipped, memo %s not found", id)
		c.done(nil)
		return nil
	}

	updated := *m
	c.done(func(s *State) {
		for i := range s.Memos {
			if s.Memos[i].ID == id {
				s.Memos[i] = updated
			}
		}
	})
	return m
}

// DeleteMemo removes a memo. It returns false when the memo does not exist
// or the delete fails; only a failure sets State.Error.
func (c *Cache) DeleteMemo(ctx context.Context, id string) bool {
	c.begin(true)

	ok, err := c.store.Delete(ctx, id)
	if err != nil {
		c.log.Errorf("Failed to delete memo %s: %v", id, err)
		c.fail(fmt.Errorf("failed to delete memo with ID %s: %w", id, err))
		return false
	}
	if !ok {
		c.log.Debugf("Delete skipped, memo %s not found", id)
		c.done(nil)
		return false
	}

	c.done(func(s *State) {
		kept := s.Memos[:0:0]
		for _, m := range s.Memos {
			if m.ID != id {
				kept = append(kept, m)
			}
		}
		s.Memos = kept
	})
	return true
}
