package breachwatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jpalmerr/breachwatch/internal/hibp"
)

// Attribution credits the data source and is carried on every reading.
const Attribution = "Data provided by Have I Been Pwned (HIBP)"

// Unit is the unit of measurement for sensor states.
const Unit = "Breaches"

// dateFormat renders breach timestamps for display.
const dateFormat = "2006-01-02 15:04:05"

// attributionKey is the attribute key carrying the Attribution string.
const attributionKey = "attribution"

var validate = validator.New()

// Sensor represents one monitored email address.
//
// Sensor is immutable after creation via [NewSensor]. Each sensor is a
// read-only view over the shared fetcher cache: it never fetches on its
// own, it only turns cache state into a [Reading].
type Sensor struct {
	email string
	name  string
}

// sensorConfig holds mutable state during Sensor construction.
type sensorConfig struct {
	name string
}

// SensorOption configures a [Sensor] during construction.
type SensorOption func(*sensorConfig) error

// WithSensorName overrides the sensor's display name.
//
// If not specified, the name defaults to "Breaches <email>".
func WithSensorName(name string) SensorOption {
	return func(cfg *sensorConfig) error {
		if name == "" {
			return errors.New("sensor name cannot be empty")
		}
		cfg.name = name
		return nil
	}
}

// NewSensor creates a [Sensor] for the given email address.
//
// The address must be a syntactically valid email. Options are applied in
// order using the functional options pattern.
//
// Example:
//
//	s, err := breachwatch.NewSensor("alice@example.com",
//	    breachwatch.WithSensorName("Alice"),
//	)
func NewSensor(email string, opts ...SensorOption) (Sensor, error) {
	if err := validate.Var(email, "required,email"); err != nil {
		return Sensor{}, fmt.Errorf("invalid email address %q", email)
	}

	cfg := &sensorConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Sensor{}, err
		}
	}

	name := cfg.name
	if name == "" {
		name = "Breaches " + email
	}

	return Sensor{email: email, name: name}, nil
}

// Email returns the monitored address.
func (s Sensor) Email() string {
	return s.email
}

// Name returns the sensor's display name.
func (s Sensor) Name() string {
	return s.name
}

// reading builds the sensor's current [Reading] from cache state.
//
// known distinguishes "never fetched" (unknown state, attribution-only
// attributes) from "fetched" (count state plus one attribute per breach).
func (s Sensor) reading(records []hibp.BreachRecord, known bool, loc *time.Location, now time.Time) Reading {
	attrs := map[string]string{attributionKey: Attribution}

	var count *int
	if known {
		n := len(records)
		count = &n
		for i, rec := range records {
			attrs[fmt.Sprintf("breach %d", i+1)] = formatBreach(rec, loc)
		}
	}

	return Reading{
		SensorName:  s.name,
		Email:       s.email,
		BreachCount: count,
		Unit:        Unit,
		Attributes:  attrs,
		UpdatedAt:   now,
	}
}

// formatBreach renders one breach attribute value: the breach title
// followed by the added date converted to the given time zone.
func formatBreach(rec hibp.BreachRecord, loc *time.Location) string {
	t, err := time.Parse(time.RFC3339, rec.AddedDate)
	if err != nil {
		// keep the raw timestamp rather than dropping the breach
		return rec.Title + " " + rec.AddedDate
	}
	return rec.Title + " " + t.In(loc).Format(dateFormat)
}
