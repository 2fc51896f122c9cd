// Package hibp implements the Have I Been Pwned polling layer.
//
// It contains two pieces:
//
//   - Client: a thin HTTP wrapper for the v3 breachedaccount endpoint with
//     the headers, query parameters, and timeout the API requires.
//   - Fetcher: a round-robin poller that services one monitored email per
//     invocation under two independent throttle gates, maintaining the
//     shared breach cache that sensors read from.
//
// This package is internal; the public API is the breachwatch package.
package hibp
