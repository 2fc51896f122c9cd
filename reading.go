package breachwatch

import "time"

// Reading is the published state of one sensor at a point in time.
//
// Reading is immutable after creation. A reading is published on every
// refresh of a sensor, including the initial "unknown" publication before
// the sensor's address has been fetched.
type Reading struct {
	// SensorName is the sensor's display name.
	SensorName string

	// Email is the monitored address the sensor observes.
	Email string

	// BreachCount is the number of breaches on record for the address.
	// nil until the address has been fetched at least once; a non-nil
	// zero means the address was looked up and is clean.
	BreachCount *int

	// Unit is the unit of measurement for BreachCount.
	Unit string

	// Attributes carries the attribution line plus one "breach <n>" entry
	// per breach, newest first, formatted as
	// "<Title> <added date in local time>".
	Attributes map[string]string

	// UpdatedAt is when this reading was published.
	UpdatedAt time.Time
}

// Known reports whether the sensor's address has been fetched at least
// once, i.e. whether BreachCount carries a value.
func (r Reading) Known() bool {
	return r.BreachCount != nil
}
