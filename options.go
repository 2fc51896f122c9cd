package breachwatch

import (
	"errors"
	"log/slog"
	"time"
)

// monitorConfig holds mutable state during Monitor construction.
type monitorConfig struct {
	title            string
	sensors          []Sensor
	apiKey           string
	baseURL          string
	updateInterval   time.Duration
	retryInterval    time.Duration
	scanInterval     time.Duration
	timeout          time.Duration
	port             int
	logger           *slog.Logger
	location         *time.Location
	readingCallbacks []func(Reading)
}

// Option is a function that configures a [Monitor] instance during
// construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*monitorConfig) error

// WithSensor adds a single [Sensor] to the monitor.
//
// Can be called multiple times to add multiple sensors. At least one
// sensor must be configured for [New] to succeed.
func WithSensor(s Sensor) Option {
	return func(cfg *monitorConfig) error {
		cfg.sensors = append(cfg.sensors, s)
		return nil
	}
}

// WithSensors adds multiple [Sensor] values to the monitor.
//
// Equivalent to calling [WithSensor] multiple times.
func WithSensors(sensors ...Sensor) Option {
	return func(cfg *monitorConfig) error {
		cfg.sensors = append(cfg.sensors, sensors...)
		return nil
	}
}

// WithAPIKey sets the HIBP API subscription key sent with every lookup.
//
// The key is mandatory; [New] fails without one.
func WithAPIKey(key string) Option {
	return func(cfg *monitorConfig) error {
		cfg.apiKey = key
		return nil
	}
}

// WithBaseURL overrides the breachedaccount endpoint URL.
//
// Intended for tests and proxies. Defaults to the public HIBP v3 endpoint.
func WithBaseURL(u string) Option {
	return func(cfg *monitorConfig) error {
		if u == "" {
			return errors.New("base URL cannot be empty")
		}
		cfg.baseURL = u
		return nil
	}
}

// WithUpdateInterval sets the standard throttle window between lookups.
//
// At most one steady-state lookup runs per window. Defaults to 15 minutes.
//
// Returns an error if the duration is zero or negative.
func WithUpdateInterval(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("update interval must be positive")
		}
		cfg.updateInterval = d
		return nil
	}
}

// WithRetryInterval sets the forced throttle window.
//
// Startup fetch loops force lookups at most once per window until every
// sensor has data. Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithRetryInterval(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("retry interval must be positive")
		}
		cfg.retryInterval = d
		return nil
	}
}

// WithScanInterval sets how often the steady-state loop attempts a
// throttled lookup.
//
// Attempts inside the update interval are suppressed by the standard
// throttle gate, so the scan interval only bounds how soon after the
// window elapses the next lookup happens. Defaults to 30 seconds.
//
// Returns an error if the duration is zero or negative.
func WithScanInterval(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("scan interval must be positive")
		}
		cfg.scanInterval = d
		return nil
	}
}

// WithTimeout sets the per-request HTTP timeout for lookups.
//
// Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server.
//
// The dashboard UI and API will be available at http://localhost:<port>.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *monitorConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and
// header.
//
// If not specified, defaults to "BreachWatch".
func WithTitle(title string) Option {
	return func(cfg *monitorConfig) error {
		cfg.title = title
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Monitor instance.
//
// This allows SDK consumers to control where logs are written and in what
// format. If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *monitorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithLocation sets the time zone used when formatting breach timestamps
// in reading attributes.
//
// Defaults to [time.Local].
//
// Returns an error if the location is nil.
func WithLocation(loc *time.Location) Option {
	return func(cfg *monitorConfig) error {
		if loc == nil {
			return errors.New("location cannot be nil")
		}
		cfg.location = loc
		return nil
	}
}

// WithReadingCallback registers a function to be called on every published
// reading, including the initial "unknown" publications at startup.
//
// Multiple callbacks may be registered by calling WithReadingCallback
// multiple times; they execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. Long-running operations
// should dispatch work to a separate goroutine.
//
// Panics within callbacks are recovered and logged with a correlation ID;
// they do not crash the monitor.
//
// Nil callbacks are silently ignored.
func WithReadingCallback(cb func(Reading)) Option {
	return func(cfg *monitorConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.readingCallbacks = append(cfg.readingCallbacks, cb)
		return nil
	}
}
