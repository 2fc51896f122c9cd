package server

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
	"testing/fstest"
	"time"

	"github.com/jpalmerr/breachwatch/internal/store"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(n int) *int { return &n }

// mockStore implements store.Store for testing.
type mockStore struct {
	mu          sync.RWMutex
	readings    []store.Reading
	subscribers map[chan store.Reading]struct{}
	subMu       sync.Mutex
}

func newMockStore() *mockStore {
	return &mockStore{
		readings:    []store.Reading{},
		subscribers: make(map[chan store.Reading]struct{}),
	}
}

func (m *mockStore) Update(reading store.Reading) {
	m.mu.Lock()
	// replace if exists, otherwise append
	found := false
	for i, r := range m.readings {
		if r.Name == reading.Name {
			m.readings[i] = reading
			found = true
			break
		}
	}
	if !found {
		m.readings = append(m.readings, reading)
	}
	m.mu.Unlock()

	m.subMu.Lock()
	for ch := range m.subscribers {
		select {
		case ch <- reading:
		default:
		}
	}
	m.subMu.Unlock()
}

func (m *mockStore) GetAll() []store.Reading {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]store.Reading, len(m.readings))
	copy(result, m.readings)
	return result
}

func (m *mockStore) Subscribe() <-chan store.Reading {
	ch := make(chan store.Reading, 100)
	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

func (m *mockStore) Unsubscribe(ch <-chan store.Reading) {
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

// testAssets returns a minimal dashboard filesystem with a title placeholder.
func testAssets() fstest.MapFS {
	return fstest.MapFS{
		"assets/index.html": &fstest.MapFile{
			Data: []byte("<html><title>{{.Title}}</title></html>"),
		},
	}
}

// --- Tests ---

func TestHandleReadings(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.Reading{
		Name:  "Breaches alice@example.com",
		Email: "alice@example.com",
		State: intPtr(3),
		Unit:  "Breaches",
		Attributes: map[string]string{
			"breach 1": "Acme 2021-06-01 12:00:00",
		},
	})
	ms.Update(store.Reading{
		Name:  "Breaches bob@example.com",
		Email: "bob@example.com",
	})

	srv := NewServer(ms, 0, nil, "", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/readings", nil)
	rec := httptest.NewRecorder()
	srv.handleReadings(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var readings []store.Reading
	if err := json.NewDecoder(rec.Body).Decode(&readings); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("got %d readings, want 2", len(readings))
	}
	if readings[0].State == nil || *readings[0].State != 3 {
		t.Errorf("alice state = %v, want 3", readings[0].State)
	}
	if readings[1].State != nil {
		t.Errorf("bob state = %v, want null", readings[1].State)
	}
	if got := readings[0].Attributes["breach 1"]; got != "Acme 2021-06-01 12:00:00" {
		t.Errorf("breach 1 = %q, want formatted breach line", got)
	}
}

func TestHandleReadings_MethodNotAllowed(t *testing.T) {
	srv := NewServer(newMockStore(), 0, nil, "", testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/readings", nil)
	rec := httptest.NewRecorder()
	srv.handleReadings(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandleDashboard_TitleSubstitution(t *testing.T) {
	srv := NewServer(newMockStore(), 0, testAssets(), "My Breaches", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<title>My Breaches</title>") {
		t.Errorf("title not substituted, body: %s", body)
	}
	if strings.Contains(body, "{{.Title}}") {
		t.Errorf("placeholder left in body: %s", body)
	}
}

func TestHandleDashboard_DefaultTitle(t *testing.T) {
	srv := NewServer(newMockStore(), 0, testAssets(), "", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, req)

	if !strings.Contains(rec.Body.String(), "BreachWatch") {
		t.Errorf("default title missing, body: %s", rec.Body.String())
	}
}

func TestHandleDashboard_EscapesTitle(t *testing.T) {
	srv := NewServer(newMockStore(), 0, testAssets(), "<script>alert(1)</script>", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, req)

	body := rec.Body.String()
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Errorf("title was not escaped, body: %s", body)
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Errorf("escaped title missing, body: %s", body)
	}
}

func TestHandleDashboard_NotFoundForOtherPaths(t *testing.T) {
	srv := NewServer(newMockStore(), 0, testAssets(), "", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleSSE_InitialSnapshot(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.Reading{Name: "Breaches alice@example.com", Email: "alice@example.com", State: intPtr(1)})
	ms.Update(store.Reading{Name: "Breaches bob@example.com", Email: "bob@example.com", State: intPtr(0)})

	srv := NewServer(ms, 0, nil, "", testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	srv.handleSSE(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "alice@example.com") {
		t.Errorf("snapshot missing alice, body: %s", body)
	}
	if !strings.Contains(body, "bob@example.com") {
		t.Errorf("snapshot missing bob, body: %s", body)
	}
	if !strings.Contains(body, "data: ") {
		t.Errorf("missing SSE framing, body: %s", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
}

func TestHandleSSE_StreamsUpdates(t *testing.T) {
	ms := newMockStore()
	srv := NewServer(ms, 0, nil, "", testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// let the handler subscribe before publishing
	time.Sleep(50 * time.Millisecond)
	ms.Update(store.Reading{Name: "Breaches carol@example.com", Email: "carol@example.com", State: intPtr(7)})

	<-done

	body := rec.Body.String()
	if !strings.Contains(body, "carol@example.com") {
		t.Errorf("update not streamed, body: %s", body)
	}
}

func TestStart_ServesAndShutsDown(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.Reading{Name: "Breaches alice@example.com", Email: "alice@example.com", State: intPtr(2)})

	srv := NewServer(ms, 19310, testAssets(), "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/api/readings", 19310))
	if err != nil {
		cancel()
		t.Fatalf("GET error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), "alice@example.com") {
		t.Errorf("response missing reading, body: %s", body)
	}

	cancel()

	// the port should free up after graceful shutdown
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_, err := http.Get(fmt.Sprintf("http://localhost:%d/api/readings", 19310))
		if err != nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Error("server still responding after context cancellation")
}

func TestStart_PortConflict(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := NewServer(newMockStore(), 19311, nil, "", testLogger())
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}

	second := NewServer(newMockStore(), 19311, nil, "", testLogger())
	if err := second.Start(ctx); err == nil {
		t.Error("second Start() on same port should fail")
	}
}
