// Package session houses concrete implementations of core.SessionStore.
// The interface and the Session struct live in core; keeping only
// implementations here prevents higher level packages (agent, memory) from
// depending on concrete storage.
//
// Backends:
//   - InMemoryStore: process local map, for tests and single-node demos
//   - postgres: pgx backed, one JSONB row per session
//   - sqlite: database/sql over modernc.org/sqlite, one file per deployment
//
// Idle sessions are evicted by an IdleSweeper driven from a cron schedule.
package session
