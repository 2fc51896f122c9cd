package hibp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// BreachRecord is one reported exposure event for an email address, as
// returned by the breachedaccount endpoint. Fields the API returns beyond
// these two are ignored.
type BreachRecord struct {
	// Title is the display name of the breach.
	Title string `json:"Title"`

	// AddedDate is the ISO-8601 timestamp the breach was added to the
	// service's index. Kept as a string; formatting for display happens
	// at the sensor layer.
	AddedDate string `json:"AddedDate"`
}

// Result describes the outcome of one fetch invocation.
type Result struct {
	// Ran reports whether the fetch body executed. False means the
	// invocation was suppressed by a throttle gate, which is not an error.
	Ran bool

	// Email is the address serviced by this invocation. Empty when the
	// invocation was suppressed.
	Email string

	// Updated reports whether the cache entry for Email was written.
	// False with Ran true means the lookup failed and nothing changed.
	Updated bool
}

// Fetcher is the shared round-robin poller over a fixed list of monitored
// email addresses.
//
// One Fetcher instance services any number of sensors: each invocation of
// [Fetcher.FetchThrottled] or [Fetcher.FetchForced] looks up the email at
// the current cursor position and advances the cursor only when the lookup
// produced a definitive answer (HTTP 200 or 404). Failed lookups leave the
// cursor in place so the next invocation retries the same address.
//
// Two independent throttle gates protect the remote API:
//
//   - The standard gate suppresses FetchThrottled calls within the standard
//     window (15 minutes by default) of the last run.
//   - The forced gate lets FetchForced bypass the standard gate, but is
//     itself limited to one run per forced window (5 seconds by default),
//     so startup retry loops cannot hammer the service.
//
// A run through either gate stamps the standard gate; only forced runs
// stamp the forced gate. Gate timestamps are taken at body entry, so a
// lookup that fails at the transport level still consumes its window.
//
// Cache semantics: a missing key means the address has never been fetched;
// an empty slice means it was fetched and has zero breaches. Startup logic
// keys off this distinction.
//
// All methods are safe for concurrent use. Fetch bodies are serialized, so
// the cursor can never be advanced twice for one lookup.
type Fetcher struct {
	client         *Client
	emails         []string
	standardWindow time.Duration
	forcedWindow   time.Duration
	logger         *slog.Logger

	// fetchMu serializes fetch bodies end to end, including the HTTP call
	fetchMu sync.Mutex

	// mu guards cursor, cache, and the gate timestamps
	mu              sync.Mutex
	cursor          int
	cache           map[string][]BreachRecord
	lastStandardRun time.Time
	lastForcedRun   time.Time
}

// NewFetcher creates a [Fetcher] over the given ordered email list.
//
// standardWindow and forcedWindow configure the two throttle gates. A zero
// window disables the corresponding gate, which is useful in tests.
// The email list must be non-empty; the caller validates this.
func NewFetcher(client *Client, emails []string, standardWindow, forcedWindow time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client:         client,
		emails:         emails,
		standardWindow: standardWindow,
		forcedWindow:   forcedWindow,
		logger:         logger,
		cache:          make(map[string][]BreachRecord, len(emails)),
	}
}

// FetchThrottled services the current cursor email, subject to the
// standard throttle gate.
//
// Within the standard window of the previous run the call is a no-op and
// returns a zero [Result]. Otherwise the gate is stamped and the fetch body
// runs synchronously.
func (f *Fetcher) FetchThrottled(ctx context.Context) Result {
	f.fetchMu.Lock()
	defer f.fetchMu.Unlock()

	f.mu.Lock()
	now := time.Now()
	if !f.lastStandardRun.IsZero() && now.Sub(f.lastStandardRun) < f.standardWindow {
		f.mu.Unlock()
		f.logger.Debug("standard throttle window not elapsed, skipping fetch")
		return Result{}
	}
	f.lastStandardRun = now
	f.mu.Unlock()

	return f.fetch(ctx)
}

// FetchForced services the current cursor email through the forced-bypass
// gate.
//
// The standard gate is ignored, but forced runs are themselves limited to
// one per forced window. A forced run stamps both gates, so it also resets
// the standard window.
func (f *Fetcher) FetchForced(ctx context.Context) Result {
	f.fetchMu.Lock()
	defer f.fetchMu.Unlock()

	f.mu.Lock()
	now := time.Now()
	if !f.lastForcedRun.IsZero() && now.Sub(f.lastForcedRun) < f.forcedWindow {
		f.mu.Unlock()
		f.logger.Debug("forced throttle window not elapsed, skipping fetch")
		return Result{}
	}
	f.lastForcedRun = now
	f.lastStandardRun = now
	f.mu.Unlock()

	return f.fetch(ctx)
}

// fetch is the body shared by both entry points. Caller holds fetchMu.
func (f *Fetcher) fetch(ctx context.Context) Result {
	f.mu.Lock()
	email := f.emails[f.cursor]
	f.mu.Unlock()

	f.logger.Debug("looking up breaches", "email", email)

	resp := f.client.Fetch(ctx, email)
	if resp.Error != nil {
		f.logger.Error("breach lookup failed", "email", email, "error", resp.Error)
		return Result{Ran: true, Email: email}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var records []BreachRecord
		if err := json.Unmarshal(resp.Body, &records); err != nil {
			f.logger.Error("breach lookup returned malformed body", "email", email, "error", err)
			return Result{Ran: true, Email: email}
		}

		// newest breach first
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].AddedDate > records[j].AddedDate
		})

		f.store(email, records)
		f.logger.Debug("breach data updated",
			"email", email,
			"breaches", len(records),
			"latency_ms", resp.Latency.Milliseconds(),
		)
		return Result{Ran: true, Email: email, Updated: true}

	case http.StatusNotFound:
		// the API reports "no known breaches" as 404
		f.store(email, []BreachRecord{})
		f.logger.Debug("no breaches on record", "email", email)
		return Result{Ran: true, Email: email, Updated: true}

	default:
		f.logger.Error("breach lookup returned unexpected status",
			"email", email,
			"status", resp.StatusCode,
		)
		return Result{Ran: true, Email: email}
	}
}

// store writes the cache entry for email and advances the cursor.
//
// Only called for definitive lookups (200 or 404); failures never reach
// here, so the cursor stays on the failed address for the next attempt.
func (f *Fetcher) store(email string, records []BreachRecord) {
	f.mu.Lock()
	f.cache[email] = records
	f.cursor = (f.cursor + 1) % len(f.emails)
	f.mu.Unlock()
}

// Known returns the cached breach records for email and whether the
// address has been fetched at all.
//
// The bool distinguishes "never fetched" (false) from "fetched with zero
// breaches" (true with an empty slice). The returned slice is a copy.
func (f *Fetcher) Known(email string) ([]BreachRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, ok := f.cache[email]
	if !ok {
		return nil, false
	}
	cp := make([]BreachRecord, len(records))
	copy(cp, records)
	return cp, true
}

// Cursor returns the index of the email the next fetch will service.
func (f *Fetcher) Cursor() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor
}

// Emails returns a copy of the monitored email list.
func (f *Fetcher) Emails() []string {
	cp := make([]string, len(f.emails))
	copy(cp, f.emails)
	return cp
}
