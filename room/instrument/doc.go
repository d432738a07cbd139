// Package instrument assigns one instrument per connected user per room.
//
// Each room draws from the same fixed ordered pool. Assignment is
// idempotent per (room, user) so reconnects and duplicate joins are
// harmless. When more users than instruments are present, assignment
// falls back to a uniform pick over the entire pool: collisions are an
// intentional degraded mode, never an error. Assignments are in-memory
// only and rebuild naturally after a restart.
package instrument
