// Package feed is the couple-scoped change feed: an in-process push stream of
// insert/update/delete notifications, fanned out per (collection, coupleID)
// channel. Events published while a consumer is not subscribed are not
// replayed; consumers treat the feed as a hint to refetch, not as the sole
// source of truth.
package feed

import (
	"sync"
	"sync/atomic"
)

// Event kinds.
const (
	KindInsert = "insert"
	KindUpdate = "update"
	KindDelete = "delete"
)

// Event is a single change notification. Record is the post-image for
// insert/update and the pre-image for delete.
type Event struct {
	Kind       string `json:"kind"`
	Collection string `json:"collection"`
	Record     any    `json:"record"`
}

// Callbacks receives dispatched events. Nil callbacks are skipped.
type Callbacks struct {
	OnInsert func(record any)
	OnUpdate func(record any)
	OnDelete func(record any)
}

type channelKey struct {
	collection string
	coupleID   int64
}

// Feed routes published events to subscriptions. Events for a single channel
// are dispatched in publish order; no ordering holds across channels.
type Feed struct {
	mu   sync.Mutex
	subs map[channelKey]map[*Subscription]struct{}
	taps []func(coupleID int64, ev Event)
}

func New() *Feed {
	return &Feed{
		subs: make(map[channelKey]map[*Subscription]struct{}),
	}
}

// Tap registers a sink that observes every published event for every couple,
// in publish order. Used to bridge the feed onto outbound transports.
// Must be called before publishing begins.
func (f *Feed) Tap(sink func(coupleID int64, ev Event)) {
	f.mu.Lock()
	f.taps = append(f.taps, sink)
	f.mu.Unlock()
}

// Publish delivers an event to every subscription on the event's channel.
// Enqueueing happens under the feed lock so all subscribers observe the same
// order for a given channel.
func (f *Feed) Publish(coupleID int64, ev Event) {
	f.mu.Lock()
	for sub := range f.subs[channelKey{collection: ev.Collection, coupleID: coupleID}] {
		sub.enqueue(ev)
	}
	taps := f.taps
	f.mu.Unlock()

	for _, tap := range taps {
		tap(coupleID, ev)
	}
}

// Subscribe opens a channel for (collection, coupleID) and dispatches events
// to cb until Unsubscribe is called.
func (f *Feed) Subscribe(collection string, coupleID int64, cb Callbacks) *Subscription {
	sub := &Subscription{
		feed: f,
		key:  channelKey{collection: collection, coupleID: coupleID},
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	sub.cb.Store(&cb)

	f.mu.Lock()
	set, ok := f.subs[sub.key]
	if !ok {
		set = make(map[*Subscription]struct{})
		f.subs[sub.key] = set
	}
	set[sub] = struct{}{}
	f.mu.Unlock()

	go sub.run()
	return sub
}

func (f *Feed) remove(sub *Subscription) {
	f.mu.Lock()
	if set, ok := f.subs[sub.key]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(f.subs, sub.key)
		}
	}
	f.mu.Unlock()
}

// Subscription is a live channel handle. Callbacks can be swapped at any time
// with SetCallbacks; dispatch always reads the latest set, so a consumer that
// re-registers its handlers never receives events through a stale closure.
type Subscription struct {
	feed *Feed
	key  channelKey
	cb   atomic.Pointer[Callbacks]

	mu    sync.Mutex
	queue []Event

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// SetCallbacks replaces the callback set for subsequent dispatches.
func (s *Subscription) SetCallbacks(cb Callbacks) {
	s.cb.Store(&cb)
}

// Unsubscribe tears the channel down. It is idempotent and safe to call
// while a dispatch is in flight: the in-flight callback completes and any
// events still queued are abandoned.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.feed.remove(s)
		close(s.done)
	})
}

func (s *Subscription) enqueue(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			default:
			}

			cb := s.cb.Load()
			switch ev.Kind {
			case KindInsert:
				if cb.OnInsert != nil {
					cb.OnInsert(ev.Record)
				}
			case KindUpdate:
				if cb.OnUpdate != nil {
					cb.OnUpdate(ev.Record)
				}
			case KindDelete:
				if cb.OnDelete != nil {
					cb.OnDelete(ev.Record)
				}
			}
		}
	}
}

// Subscriber owns one client's subscriptions and enforces at most one live
// channel per (collection, coupleID): re-subscribing to the same key first
// tears down the previous channel so events are never delivered twice.
type Subscriber struct {
	feed *Feed

	mu   sync.Mutex
	subs map[channelKey]*Subscription
}

func NewSubscriber(f *Feed) *Subscriber {
	return &Subscriber{
		feed: f,
		subs: make(map[channelKey]*Subscription),
	}
}

// Subscribe opens (or replaces) the channel for the given key.
func (c *Subscriber) Subscribe(collection string, coupleID int64, cb Callbacks) *Subscription {
	key := channelKey{collection: collection, coupleID: coupleID}

	c.mu.Lock()
	if prev, ok := c.subs[key]; ok {
		prev.Unsubscribe()
	}
	sub := c.feed.Subscribe(collection, coupleID, cb)
	c.subs[key] = sub
	c.mu.Unlock()

	return sub
}

// Close unsubscribes every channel this subscriber owns.
func (c *Subscriber) Close() {
	c.mu.Lock()
	for key, sub := range c.subs {
		sub.Unsubscribe()
		delete(c.subs, key)
	}
	c.mu.Unlock()
}
