// Package memory implements the conversation memory store: per-session turn
// history persisted through a core.SessionStore, bounded by a size budget.
// When a session grows past the budget (or past MaxTurns), the oldest turns
// are folded into a single summary turn while the most recent KeepRecent
// turns stay verbatim. If summarization fails or times out, the oldest
// verbatim turns are dropped instead, so the bound always holds.
//
// Store does not lock internally; callers serialize work on one session with
// Acquire.
package memory
