package store

import (
	"sort"
	"sync"
)

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore provides thread-safe storage with a publish-subscribe
// mechanism for real-time updates. Readings are keyed by sensor name, with
// new readings replacing previous values.
//
// Subscribers receive updates via buffered channels (buffer size 100).
// Updates are sent non-blocking; if a subscriber's buffer is full, the
// update is dropped for that subscriber to prevent blocking the publisher.
type MemoryStore struct {
	mu          sync.RWMutex
	readings    map[string]Reading
	subscribers map[chan Reading]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// The store is immediately ready for use. No cleanup is required when done.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		readings:    make(map[string]Reading),
		subscribers: make(map[chan Reading]struct{}),
	}
}

// Update stores a [Reading] and notifies all subscribers.
//
// The reading is stored using its Name as the key. Subsequent updates with
// the same name replace the previous value.
func (m *MemoryStore) Update(reading Reading) {
	m.mu.Lock()
	m.readings[reading.Name] = reading
	m.mu.Unlock()

	m.notifySubscribers(reading)
}

// GetAll returns a snapshot of all currently stored readings, sorted by
// sensor name for stable display ordering.
func (m *MemoryStore) GetAll() []Reading {
	m.mu.RLock()
	readings := make([]Reading, 0, len(m.readings))
	for _, r := range m.readings {
		readings = append(readings, r)
	}
	m.mu.RUnlock()

	sort.Slice(readings, func(i, j int) bool {
		return readings[i].Name < readings[j].Name
	})
	return readings
}

// Subscribe creates a new subscription and returns a channel for receiving
// updates.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource
// leaks.
func (m *MemoryStore) Subscribe() <-chan Reading {
	ch := make(chan Reading, 100)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// After calling Unsubscribe, the channel will be closed and no further
// updates will be sent. Safe to call multiple times or with an unknown
// channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Reading) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the reading to all active subscribers.
//
// This is non-blocking: if a subscriber's channel buffer is full, the
// message is dropped for that subscriber rather than blocking the update
// path.
func (m *MemoryStore) notifySubscribers(reading Reading) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- reading:
		default:
			// subscriber is slow, drop the message
		}
	}
}
