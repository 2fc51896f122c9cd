// Package breachwatch monitors email addresses against the Have I Been
// Pwned (HIBP) breach index and exposes one sensor per address on a live
// dashboard.
//
// BreachWatch is designed as an SDK-first library: developers configure a
// [Monitor] programmatically and run it as part of their applications. A
// standalone binary with YAML configuration lives in cmd/breachwatch.
//
// # Quick Start
//
// Create sensors and start the monitor with graceful shutdown:
//
//	s, _ := breachwatch.NewSensor("alice@example.com")
//	m, _ := breachwatch.New(
//	    breachwatch.WithSensor(s),
//	    breachwatch.WithAPIKey(os.Getenv("HIBP_API_KEY")),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	m.Start(ctx) // blocks until context is cancelled
//
// # Polling model
//
// All sensors share a single rotating fetcher: each fetch invocation looks
// up one email address and advances a round-robin cursor only when the
// lookup succeeds. Steady-state lookups are throttled to one per update
// interval (15 minutes by default). At startup each sensor drives a forced
// fetch loop on a much shorter window (5 seconds by default) until its
// address has data, so the dashboard fills in quickly without hammering
// the API.
//
// The HIBP API reports "no known breaches" as HTTP 404; BreachWatch treats
// that as a valid reading of zero, distinct from "not fetched yet", which
// is published as an unknown state.
//
// # Architecture
//
// BreachWatch consists of several internal packages (under internal/):
//
//   - internal/hibp: HIBP API client and the round-robin throttled fetcher
//   - internal/store: In-memory readings storage with pub/sub
//   - internal/server: HTTP server with REST API and Server-Sent Events
//   - dashboard: Embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice. The library is designed for single-binary deployment
// using Go's embed directive for static assets.
package breachwatch
