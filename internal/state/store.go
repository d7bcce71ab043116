// Package state holds the per-domain client view of a couple's records. One
// Store instance exists per domain (check-ins, bookends, reminders); it
// merges optimistic local writes with change-feed events and exposes a
// consistent materialized read view. Server state is authoritative: a feed
// event for a record always replaces any optimistic overlay for the same
// identity, so two stores fed the same event stream converge without
// coordinating with each other.
package state

import (
	"context"
	"sort"
	"sync"

	"github.com/calebfife/tandem/internal/feed"
)

// Keyed is a record with a stable numeric identity.
type Keyed interface {
	RecordID() int64
}

// Persister is the remote read/write boundary for one collection.
type Persister[T Keyed] interface {
	Fetch(ctx context.Context) ([]T, error)
	Insert(ctx context.Context, rec T) (T, error)
	Update(ctx context.Context, rec T) (T, error)
	Delete(ctx context.Context, id int64) error
}

// Store materializes one collection for one couple.
type Store[T Keyed] struct {
	collection string
	coupleID   int64
	persister  Persister[T]
	sub        *feed.Subscription

	mu       sync.Mutex
	base     map[int64]T // server-confirmed records
	overlay  map[int64]T // optimistic writes awaiting confirmation
	deleted  map[int64]struct{}
	watchers map[int64]func()
	nextID   int64
}

// New constructs a store and opens its feed channel through the given
// subscriber, which guarantees any previous channel for the same
// (collection, couple) is torn down first.
func New[T Keyed](collection string, coupleID int64, persister Persister[T], subscriber *feed.Subscriber) *Store[T] {
	s := &Store[T]{
		collection: collection,
		coupleID:   coupleID,
		persister:  persister,
		base:       make(map[int64]T),
		overlay:    make(map[int64]T),
		deleted:    make(map[int64]struct{}),
		watchers:   make(map[int64]func()),
	}
	s.sub = subscriber.Subscribe(collection, coupleID, feed.Callbacks{
		OnInsert: s.applyUpsert,
		OnUpdate: s.applyUpsert,
		OnDelete: s.applyDelete,
	})
	return s
}

// Load replaces the materialized view with a fresh server snapshot. Callers
// invoke it on startup and after a feed reconnect, since missed events are
// not replayed.
func (s *Store[T]) Load(ctx context.Context) error {
	recs, err := s.persister.Fetch(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.base = make(map[int64]T, len(recs))
	for _, rec := range recs {
		s.base[rec.RecordID()] = rec
	}
	s.overlay = make(map[int64]T)
	s.deleted = make(map[int64]struct{})
	s.mu.Unlock()

	s.notify()
	return nil
}

// List returns the merged view ordered by record ID.
func (s *Store[T]) List() []T {
	s.mu.Lock()
	merged := make(map[int64]T, len(s.base))
	for id, rec := range s.base {
		merged[id] = rec
	}
	for id, rec := range s.overlay {
		merged[id] = rec
	}
	for id := range s.deleted {
		delete(merged, id)
	}
	s.mu.Unlock()

	out := make([]T, 0, len(merged))
	for _, rec := range merged {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID() < out[j].RecordID() })
	return out
}

// Get returns the current view of one record.
func (s *Store[T]) Get(id int64) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if _, gone := s.deleted[id]; gone {
		return zero, false
	}
	if rec, ok := s.overlay[id]; ok {
		return rec, true
	}
	rec, ok := s.base[id]
	if !ok {
		return zero, false
	}
	return rec, true
}

// Create persists a new record and applies it optimistically. The server's
// feed event for the insert reconciles the overlay away.
func (s *Store[T]) Create(ctx context.Context, rec T) (T, error) {
	saved, err := s.persister.Insert(ctx, rec)
	if err != nil {
		var zero T
		return zero, err
	}

	s.mu.Lock()
	s.overlay[saved.RecordID()] = saved
	s.mu.Unlock()

	s.notify()
	return saved, nil
}

// Update applies the record optimistically and persists it. On persist
// failure the overlay is rolled back.
func (s *Store[T]) Update(ctx context.Context, rec T) (T, error) {
	id := rec.RecordID()

	s.mu.Lock()
	prev, hadOverlay := s.overlay[id]
	s.overlay[id] = rec
	s.mu.Unlock()
	s.notify()

	saved, err := s.persister.Update(ctx, rec)
	if err != nil {
		s.mu.Lock()
		if hadOverlay {
			s.overlay[id] = prev
		} else {
			delete(s.overlay, id)
		}
		s.mu.Unlock()
		s.notify()
		var zero T
		return zero, err
	}

	s.mu.Lock()
	s.overlay[id] = saved
	s.mu.Unlock()
	s.notify()
	return saved, nil
}

// Delete removes the record optimistically and persists the removal. On
// failure the tombstone is rolled back.
func (s *Store[T]) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	s.deleted[id] = struct{}{}
	s.mu.Unlock()
	s.notify()

	if err := s.persister.Delete(ctx, id); err != nil {
		s.mu.Lock()
		delete(s.deleted, id)
		s.mu.Unlock()
		s.notify()
		return err
	}
	return nil
}

// Watch registers an observer called after every view change. The returned
// function removes the observer and is safe to call more than once.
func (s *Store[T]) Watch(fn func()) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// Close tears down the store's feed channel.
func (s *Store[T]) Close() {
	s.sub.Unsubscribe()
}

// applyUpsert reconciles a server insert/update into the base view. The
// server record wins over any optimistic overlay with the same identity.
func (s *Store[T]) applyUpsert(record any) {
	rec, ok := record.(T)
	if !ok {
		return
	}
	id := rec.RecordID()

	s.mu.Lock()
	s.base[id] = rec
	delete(s.overlay, id)
	delete(s.deleted, id)
	s.mu.Unlock()

	s.notify()
}

func (s *Store[T]) applyDelete(record any) {
	rec, ok := record.(T)
	if !ok {
		return
	}
	id := rec.RecordID()

	s.mu.Lock()
	delete(s.base, id)
	delete(s.overlay, id)
	delete(s.deleted, id)
	s.mu.Unlock()

	s.notify()
}

func (s *Store[T]) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
