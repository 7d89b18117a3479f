//file: internal/topics/topics.go
// Package topics holds the topic model, the registry of managed topics,
// and the topic name utilities shared by the broker connectors.
package topics

import (
	"errors"
	"sync"
	"time"
)

// ErrTopicExists is returned by Insert when the id is already registered.
var ErrTopicExists = errors.New("topic already exists")

// Topic is the managed state for one allocated topic.
type Topic struct {
	// Owner is the publisher client id; empty when subscribers raced
	// ahead of the publisher.
	Owner string

	// Subscribers is the current subscriber count; never negative.
	Subscribers int

	// Callback is the management callback URI; empty when the owner
	// did not register one.
	Callback string

	// LastActionAt is refreshed on every subscribe, unsubscribe and
	// timeout tick.
	LastActionAt time.Time

	// Deleted marks the topic for removal; the cleanup sweep picks it up.
	Deleted bool
}

// Registry is the authoritative topic_id -> Topic map. A single coarse
// lock guards it; mutation closures must not perform I/O.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Topic
}

// NewRegistry creates an empty topic registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Topic),
	}
}

// Insert adds a new topic under id. It fails with ErrTopicExists if the
// id is already taken.
func (r *Registry) Insert(id string, t Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		return ErrTopicExists
	}

	entry := t
	r.entries[id] = &entry
	return nil
}

// Get returns a copy of the topic, if present.
func (r *Registry) Get(id string) (Topic, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return Topic{}, false
	}
	return *entry, true
}

// Remove evicts the topic and returns it, if present.
func (r *Registry) Remove(id string) (Topic, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return Topic{}, false
	}
	delete(r.entries, id)
	return *entry, true
}

// Mutate applies fn to the topic while holding the registry lock and
// reports whether the topic exists.
func (r *Registry) Mutate(id string, fn func(*Topic)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return false
	}
	fn(entry)
	return true
}

// Snapshot copies out all entries, for the cleanup sweep.
func (r *Registry) Snapshot() map[string]Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[string]Topic, len(r.entries))
	for id, entry := range r.entries {
		snap[id] = *entry
	}
	return snap
}

// Len reports the number of registered topics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
