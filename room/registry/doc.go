// Package registry tracks live WebSocket connections and is the single
// source of truth for "who is where".
//
// Connection identity and user identity are distinct: a user with two open
// tabs holds two registry records. Roster queries deduplicate by user id.
// The registry is a constructor-built service object so tests can run
// isolated instances; all access is mutex-guarded because handlers for
// different connections run concurrently.
package registry
