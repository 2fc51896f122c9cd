// Package server implements the HTTP layer for BreachWatch: the embedded
// dashboard, the readings REST endpoint, and the Server-Sent Events stream
// for live sensor updates.
//
// This package is internal; the public API is the breachwatch package.
package server
