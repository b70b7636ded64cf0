// Package storage persists the daemon state across restarts.
//
// It stores:
//   - the latest state snapshot (target, interval, rate-limit window, last
//     update and the published asset history)
//   - an append-only audit log of operator actions
package storage
