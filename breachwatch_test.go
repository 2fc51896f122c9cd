package breachwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newMockHIBP serves 200 with one breach for alice and 404 for everyone
// else.
func newMockHIBP(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimPrefix(r.URL.Path, "/")
		if email == "alice@example.com" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"Title":"Acme","AddedDate":"2021-06-01T12:00:00Z"}]`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)
	return server
}

// TestMonitor_WarmupPublishesAllSensors verifies the startup sequence: the
// forced-retry loops keep rotating until every sensor's email has data,
// and each sensor ends up with a known reading.
func TestMonitor_WarmupPublishesAllSensors(t *testing.T) {
	mock := newMockHIBP(t)

	alice := testSensor(t, "alice@example.com")
	bob := testSensor(t, "bob@example.com")

	var mu sync.Mutex
	counts := make(map[string]int)
	done := make(chan struct{})

	m, err := New(
		WithSensors(alice, bob),
		WithAPIKey("test-key"),
		WithBaseURL(mock.URL),
		WithRetryInterval(20*time.Millisecond),
		WithLocation(time.UTC),
		WithLogger(testLogger()),
		WithPort(19300),
		WithReadingCallback(func(r Reading) {
			if !r.Known() {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if _, seen := counts[r.Email]; !seen {
				counts[r.Email] = *r.BreachCount
				if len(counts) == 2 {
					close(done)
				}
			}
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Start(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for both sensors to publish known readings")
	}

	mu.Lock()
	defer mu.Unlock()
	if counts["alice@example.com"] != 1 {
		t.Errorf("alice breach count = %d, want 1", counts["alice@example.com"])
	}
	if counts["bob@example.com"] != 0 {
		t.Errorf("bob breach count = %d, want 0", counts["bob@example.com"])
	}
}

// TestMonitor_ReadingsEndpoint verifies the dashboard API serves the
// published readings with formatted breach attributes.
func TestMonitor_ReadingsEndpoint(t *testing.T) {
	mock := newMockHIBP(t)

	alice := testSensor(t, "alice@example.com")
	done := make(chan struct{})
	var once sync.Once

	m, err := New(
		WithSensor(alice),
		WithAPIKey("test-key"),
		WithBaseURL(mock.URL),
		WithRetryInterval(20*time.Millisecond),
		WithLocation(time.UTC),
		WithLogger(testLogger()),
		WithPort(19301),
		WithReadingCallback(func(r Reading) {
			if r.Known() {
				once.Do(func() { close(done) })
			}
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Start(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for alice's reading")
	}

	// the callback can fire before the listener is up; poll briefly
	var resp *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err = http.Get(fmt.Sprintf("http://localhost:%d/api/readings", m.Port()))
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("GET /api/readings error = %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	defer func() { _ = resp.Body.Close() }()

	var readings []struct {
		Name       string            `json:"name"`
		Email      string            `json:"email"`
		State      *int              `json:"state"`
		Unit       string            `json:"unit"`
		Attributes map[string]string `json:"attributes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&readings); err != nil {
		t.Fatalf("decode readings: %v", err)
	}

	if len(readings) != 1 {
		t.Fatalf("got %d readings, want 1", len(readings))
	}
	r := readings[0]
	if r.Name != "Breaches alice@example.com" {
		t.Errorf("name = %q, want %q", r.Name, "Breaches alice@example.com")
	}
	if r.State == nil || *r.State != 1 {
		t.Errorf("state = %v, want 1", r.State)
	}
	if r.Unit != Unit {
		t.Errorf("unit = %q, want %q", r.Unit, Unit)
	}
	if got := r.Attributes["breach 1"]; got != "Acme 2021-06-01 12:00:00" {
		t.Errorf("breach 1 = %q, want %q", got, "Acme 2021-06-01 12:00:00")
	}
	if got := r.Attributes["attribution"]; got != Attribution {
		t.Errorf("attribution = %q, want %q", got, Attribution)
	}
}

// TestMonitor_UnknownPublishedImmediately verifies every sensor appears on
// the dashboard as unknown before its first successful lookup.
func TestMonitor_UnknownPublishedImmediately(t *testing.T) {
	// a server that never answers definitively keeps sensors unknown
	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(mock.Close)

	unknownSeen := make(chan Reading, 1)
	m, err := New(
		WithSensor(testSensor(t, "a@x.com")),
		WithAPIKey("test-key"),
		WithBaseURL(mock.URL),
		WithLogger(testLogger()),
		WithPort(19302),
		WithReadingCallback(func(r Reading) {
			select {
			case unknownSeen <- r:
			default:
			}
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Start(ctx) }()

	select {
	case r := <-unknownSeen:
		if r.Known() {
			t.Errorf("first published reading Known() = true, want false")
		}
		if r.Attributes["attribution"] != Attribution {
			t.Errorf("attribution = %q, want %q", r.Attributes["attribution"], Attribution)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for initial unknown reading")
	}
}

// TestMonitor_CallbackPanicRecovered verifies a panicking callback does
// not take down the monitor: later callbacks still fire.
func TestMonitor_CallbackPanicRecovered(t *testing.T) {
	mock := newMockHIBP(t)

	survived := make(chan struct{})
	var once sync.Once

	m, err := New(
		WithSensor(testSensor(t, "alice@example.com")),
		WithAPIKey("test-key"),
		WithBaseURL(mock.URL),
		WithRetryInterval(20*time.Millisecond),
		WithLogger(testLogger()),
		WithPort(19303),
		WithReadingCallback(func(r Reading) {
			panic("callback exploded")
		}),
		WithReadingCallback(func(r Reading) {
			if r.Known() {
				once.Do(func() { close(survived) })
			}
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Start(ctx) }()

	select {
	case <-survived:
	case <-time.After(5 * time.Second):
		t.Fatal("second callback never fired; panic was not recovered")
	}
}

// TestMonitor_StartWithCancelledContext verifies Start returns promptly
// when the context is already done.
func TestMonitor_StartWithCancelledContext(t *testing.T) {
	m, err := New(
		WithSensor(testSensor(t, "a@x.com")),
		WithAPIKey("test-key"),
		WithLogger(testLogger()),
		WithPort(19304),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- m.Start(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return with a cancelled context")
	}
}
