package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jpalmerr/breachwatch"
)

// mockBreaches is served for alice; bob gets a 404 ("no known breaches").
var mockBreaches = []map[string]string{
	{"Title": "Adobe", "AddedDate": "2013-12-04T00:00:00Z"},
	{"Title": "LinkedIn", "AddedDate": "2016-05-21T21:35:40Z"},
}

// startMockHIBP serves a minimal imitation of the breachedaccount endpoint
// so the demo runs without an API key or network access.
func startMockHIBP(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/breachedaccount/", func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimPrefix(r.URL.Path, "/breachedaccount/")
		if strings.HasPrefix(email, "alice@") {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(mockBreaches)
			return
		}
		http.NotFound(w, r)
	})
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("mock server error", "error", err)
			os.Exit(1)
		}
	}()
}

func main() {
	startMockHIBP(":9999")
	time.Sleep(100 * time.Millisecond)

	alice, _ := breachwatch.NewSensor("alice@example.com")
	bob, _ := breachwatch.NewSensor("bob@example.com", breachwatch.WithSensorName("Bob's inbox"))

	m, err := breachwatch.New(
		breachwatch.WithSensors(alice, bob),
		breachwatch.WithAPIKey("demo-key"),
		breachwatch.WithBaseURL("http://localhost:9999/breachedaccount/"),
		breachwatch.WithUpdateInterval(time.Minute),
		breachwatch.WithRetryInterval(2*time.Second),
		breachwatch.WithPort(8080),
		breachwatch.WithReadingCallback(func(r breachwatch.Reading) {
			if r.Known() && *r.BreachCount > 0 {
				slog.Warn("breaches on record", "sensor", r.SensorName, "count", *r.BreachCount)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  BreachWatch Demo")
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println("  (data served by a local mock, no API key needed)")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		slog.Error("monitor error", "error", err)
		os.Exit(1)
	}
}
