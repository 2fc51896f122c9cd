// Package store provides in-memory storage for sensor readings with
// pub/sub support for real-time updates.
//
// The store keeps the latest reading per sensor and notifies subscribers
// on every update, which drives the Server-Sent Events stream in the
// server package.
//
// This package is internal; the public API is the breachwatch package.
package store
