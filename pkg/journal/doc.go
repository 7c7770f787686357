// Package journal persists monitoring events and last-known target status
// in a local bbolt database. The monitoring core does not require it; it
// backs the history command and the events API.
package journal
