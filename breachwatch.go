package breachwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/breachwatch/dashboard"
	"github.com/jpalmerr/breachwatch/internal/hibp"
	"github.com/jpalmerr/breachwatch/internal/server"
	"github.com/jpalmerr/breachwatch/internal/store"
)

const (
	defaultUpdateInterval = 15 * time.Minute
	defaultRetryInterval  = 5 * time.Second
	defaultScanInterval   = 30 * time.Second
	defaultTimeout        = 5 * time.Second
	defaultPort           = 8080
)

// Monitor is the main orchestrator for breach polling and dashboard
// serving.
//
// Monitor coordinates a single shared fetcher over all monitored email
// addresses, publishes per-sensor readings into a store, and serves a
// real-time dashboard via HTTP. It is created using [New] with functional
// options and started with [Monitor.Start].
//
// The typical lifecycle is:
//
//	m, err := breachwatch.New(
//	    breachwatch.WithSensor(s),
//	    breachwatch.WithAPIKey(key),
//	)
//	if err != nil {
//	    slog.Error("failed to create monitor", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	m.Start(ctx) // blocks until context cancelled
//
// The caller controls the lifecycle via the context. Cancel the context to
// trigger graceful shutdown.
type Monitor struct {
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

// New creates a new [Monitor] instance with the given options.
//
// At least one sensor must be configured via [WithSensor] or
// [WithSensors], and an API key via [WithAPIKey]. Other options have
// sensible defaults:
//   - Update interval: 15 minutes
//   - Retry interval: 5 seconds
//   - Port: 8080
//
// Returns an error if required options are missing, sensor emails are not
// unique, or any option is invalid.
func New(opts ...Option) (*Monitor, error) {
	cfg := &monitorConfig{
		updateInterval: defaultUpdateInterval,
		retryInterval:  defaultRetryInterval,
		scanInterval:   defaultScanInterval,
		timeout:        defaultTimeout,
		port:           defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.sensors) == 0 {
		return nil, errors.New("at least one sensor is required")
	}

	if cfg.apiKey == "" {
		return nil, errors.New("an API key is required")
	}

	// email uniqueness is required: the cursor rotates over emails, and a
	// duplicate would be serviced twice per cycle while shadowing nothing
	seen := make(map[string]bool, len(cfg.sensors))
	for _, s := range cfg.sensors {
		if seen[s.email] {
			return nil, fmt.Errorf("duplicate monitored email: %q", s.email)
		}
		seen[s.email] = true
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	location := cfg.location
	if location == nil {
		location = time.Local
	}

	return &Monitor{
		title:            cfg.title,
		sensors:          cfg.sensors,
		apiKey:           cfg.apiKey,
		baseURL:          cfg.baseURL,
		updateInterval:   cfg.updateInterval,
		retryInterval:    cfg.retryInterval,
		scanInterval:     cfg.scanInterval,
		timeout:          cfg.timeout,
		port:             cfg.port,
		logger:           logger,
		location:         location,
		readingCallbacks: cfg.readingCallbacks,
	}, nil
}

// Start begins polling and serving the dashboard.
//
// Start is a blocking call that runs until the provided context is
// cancelled. During execution:
//
//   - Every sensor is published immediately in the unknown state
//   - Per-sensor warmup loops force lookups until each address has data
//   - Steady-state lookups continue at the update interval
//   - The dashboard is available at http://localhost:<port>
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server
// fails to start.
func (m *Monitor) Start(ctx context.Context) error {
	m.logger.Info("breachwatch starting", "sensor_count", len(m.sensors))
	m.logger.Info("polling configured",
		"update_interval", m.updateInterval.String(),
		"retry_interval", m.retryInterval.String(),
	)
	m.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", m.port))

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	emails := make([]string, len(m.sensors))
	for i, s := range m.sensors {
		emails[i] = s.email
	}

	client := hibp.NewClient(m.baseURL, m.apiKey, m.timeout)
	fetcher := hibp.NewFetcher(client, emails, m.updateInterval, m.retryInterval, m.logger)
	readings := store.NewMemoryStore()

	// publish every sensor in the unknown state so the dashboard shows
	// the full set immediately
	m.publishAll(readings, fetcher)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	// warmup: one forced-retry loop per sensor
	for _, s := range m.sensors {
		wg.Add(1)
		go func(s Sensor) {
			defer wg.Done()
			m.warmup(runCtx, s, fetcher, readings)
		}(s)
	}

	// steady state: attempt a throttled lookup on every scan tick; the
	// standard gate turns most attempts into no-ops
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(m.scanInterval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if res := fetcher.FetchThrottled(runCtx); res.Updated {
					m.publishAll(readings, fetcher)
				}
			}
		}
	}()

	httpServer := server.NewServer(readings, m.port, dashboard.Assets, m.title, m.logger)
	if err := httpServer.Start(runCtx); err != nil {
		cancel()
		wg.Wait()
		client.Close()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-runCtx.Done()
	wg.Wait()
	client.Close()
	m.logger.Info("breachwatch stopped")
	return nil
}

// Sensors returns a copy of the configured sensors.
//
// The returned slice is a copy; modifying it does not affect the Monitor.
// Each [Sensor] in the slice is immutable.
func (m *Monitor) Sensors() []Sensor {
	cp := make([]Sensor, len(m.sensors))
	copy(cp, m.sensors)
	return cp
}

// Port returns the configured HTTP port for the dashboard server.
func (m *Monitor) Port() int {
	return m.port
}

// UpdateInterval returns the configured standard throttle window.
func (m *Monitor) UpdateInterval() time.Duration {
	return m.updateInterval
}

// RetryInterval returns the configured forced throttle window.
func (m *Monitor) RetryInterval() time.Duration {
	return m.retryInterval
}

// warmup drives the initial fetch sequence for one sensor: force a
// lookup, and while the shared cache still has nothing for this sensor's
// address, park on a retry timer and try again.
//
// The loop self-terminates once the rotating fetcher has serviced this
// address. With N monitored addresses that takes at most N forced windows,
// since every sensor's forced calls advance the same shared cursor.
// Context cancellation is the liveness check: a timer that fires after
// shutdown finds the context done and exits instead of acting on a
// torn-down monitor.
func (m *Monitor) warmup(ctx context.Context, s Sensor, fetcher *hibp.Fetcher, readings store.Store) {
	for {
		if ctx.Err() != nil {
			return
		}

		if res := fetcher.FetchForced(ctx); res.Updated {
			m.publishAll(readings, fetcher)
		}

		if _, known := fetcher.Known(s.email); known {
			m.publish(readings, s, fetcher)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.retryInterval):
		}
	}
}

// publishAll refreshes every sensor's reading from the fetcher cache.
func (m *Monitor) publishAll(readings store.Store, fetcher *hibp.Fetcher) {
	for _, s := range m.sensors {
		m.publish(readings, s, fetcher)
	}
}

// publish refreshes one sensor's reading from the fetcher cache, stores
// it, and invokes the reading callbacks.
func (m *Monitor) publish(readings store.Store, s Sensor, fetcher *hibp.Fetcher) {
	records, known := fetcher.Known(s.email)
	reading := s.reading(records, known, m.location, time.Now())

	// store update first (callbacks fire after data is persisted)
	readings.Update(readingToStoreReading(reading))

	for _, cb := range m.readingCallbacks {
		invokeCallbackSafe(cb, reading, m.logger)
	}
}

// readingToStoreReading converts the public reading to its storage
// representation.
func readingToStoreReading(r Reading) store.Reading {
	return store.Reading{
		Name:       r.SensorName,
		Email:      r.Email,
		State:      r.BreachCount,
		Unit:       r.Unit,
		Attributes: copyMap(r.Attributes),
		UpdatedAt:  r.UpdatedAt,
	}
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// invokeCallbackSafe calls a reading callback with panic recovery.
//
// If the callback panics, the full stack trace is logged with a
// correlation ID and the monitor continues; a misbehaving callback cannot
// crash the polling loop.
func invokeCallbackSafe(cb func(Reading), reading Reading, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			logger.Error("reading callback panicked",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"sensor", reading.SensorName,
				"stack", string(debug.Stack()),
			)
		}
	}()
	cb(reading)
}
