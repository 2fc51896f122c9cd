package store

import "time"

// Reading is the storage representation of one sensor's published state,
// optimized for JSON serialization (used by the REST API and SSE). It is
// decoupled from the public breachwatch.Reading type so the two can evolve
// independently.
type Reading struct {
	// Name is the sensor's display name, used as the storage key.
	Name string `json:"name"`

	// Email is the monitored address the sensor observes.
	Email string `json:"email"`

	// State is the breach count. nil means the address has not been
	// fetched yet and the sensor state is unknown.
	State *int `json:"state"`

	// Unit is the unit of measurement for State.
	Unit string `json:"unit"`

	// Attributes carries the attribution line plus one entry per breach.
	Attributes map[string]string `json:"attributes"`

	// UpdatedAt is when this reading was published.
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the interface for storing and subscribing to sensor
// readings.
//
// Implementations must be safe for concurrent access. The pub/sub
// mechanism pushes updates to connected clients (via Server-Sent Events).
type Store interface {
	// Update stores a reading and notifies all subscribers. Readings are
	// keyed by Name, so subsequent updates replace previous values.
	Update(reading Reading)

	// GetAll returns all stored readings sorted by sensor name.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []Reading

	// Subscribe returns a channel that receives reading updates.
	// The channel is buffered; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Reading

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Reading)
}
