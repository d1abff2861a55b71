package core

import (
	"context"
	"slices"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser marks a turn written by the shopper.
	RoleUser Role = "user"
	// RoleAssistant marks a reply produced by the agent.
	RoleAssistant Role = "assistant"
	// RoleSummary marks the synthesized turn produced by compaction.
	RoleSummary Role = "summary"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSummary:
		return true
	default:
		return false
	}
}

// Turn is one immutable entry in a session history.
type Turn struct {
	Index   int       `json:"index"`
	Role    Role      `json:"role"`
	Text    string    `json:"text"`
	Created time.Time `json:"created"`
}

// Session is the per-conversation state: an ordered list of turns and an
// optional rolling summary of older turns.
//
// Contract:
//   - Turn indices are strictly increasing by one with no gaps
//   - Summary is nil until the first compaction
//   - Shown lists products displayed since the last summary; it never
//     appears in turn text
//   - Clone returns a deep copy safe for independent mutation
//
// A Session value is not synchronized; callers hold the per-session lock
// (see memory.Store.Acquire) while mutating it.
type Session struct {
	ID          string    `json:"id"`
	Turns       []Turn    `json:"turns"`
	Summary     *string   `json:"summary,omitempty"`
	Shown       []string  `json:"shown,omitempty"`
	Compactions int       `json:"compactions"`
	// Issued counts the turn indices handed out so far. It never decreases,
	// even when compaction drops every turn.
	Issued      int       `json:"issued"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

// NewSession creates an empty session with the given ID.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, Turns: []Turn{}, Created: now, Updated: now}
}

// NextIndex returns the index the next appended turn will receive.
func (s *Session) NextIndex() int {
	next := s.Issued
	if n := len(s.Turns); n > 0 && s.Turns[n-1].Index+1 > next {
		next = s.Turns[n-1].Index + 1
	}
	return next
}

// AppendTurn appends a turn with the next index and returns it.
func (s *Session) AppendTurn(role Role, text string) Turn {
	now := time.Now()
	t := Turn{Index: s.NextIndex(), Role: role, Text: text, Created: now}
	s.Turns = append(s.Turns, t)
	s.Issued = t.Index + 1
	s.Updated = now
	return t
}

// History returns the user and assistant turns, excluding the summary turn.
func (s *Session) History() []Turn {
	res := make([]Turn, 0, len(s.Turns))
	for _, t := range s.Turns {
		if t.Role == RoleUser || t.Role == RoleAssistant {
			res = append(res, t)
		}
	}
	return res
}

// LastTurn returns the most recent turn with the given role.
func (s *Session) LastTurn(role Role) (Turn, bool) {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == role {
			return s.Turns[i], true
		}
	}
	return Turn{}, false
}

// SummaryText returns the summary or an empty string.
func (s *Session) SummaryText() string {
	if s.Summary == nil {
		return ""
	}
	return *s.Summary
}

// SetSummary stores a summary. It is only called by compaction.
func (s *Session) SetSummary(text string) {
	s.Summary = &text
	s.Updated = time.Now()
}

// MaxShown bounds Session.Shown; the oldest entries are dropped first.
const MaxShown = 30

// RecordShown remembers products displayed to the shopper. Items already
// recorded are skipped.
func (s *Session) RecordShown(items ...string) {
	for _, item := range items {
		if !slices.Contains(s.Shown, item) {
			s.Shown = append(s.Shown, item)
		}
	}
	if over := len(s.Shown) - MaxShown; over > 0 {
		s.Shown = append([]string(nil), s.Shown[over:]...)
	}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	clone := &Session{
		ID:          s.ID,
		Turns:       make([]Turn, len(s.Turns)),
		Compactions: s.Compactions,
		Issued:      s.Issued,
		Created:     s.Created,
		Updated:     s.Updated,
	}
	copy(clone.Turns, s.Turns)
	if len(s.Shown) > 0 {
		clone.Shown = append([]string(nil), s.Shown...)
	}
	if s.Summary != nil {
		sum := *s.Summary
		clone.Summary = &sum
	}
	return clone
}

// SessionStore persists sessions by ID. Get returns ErrSessionNotFound for
// unknown IDs; Put replaces the stored session wholesale.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Sweeper is implemented by stores able to evict sessions idle since before
// the cutoff. It returns the number of removed sessions.
type Sweeper interface {
	DeleteIdle(ctx context.Context, cutoff time.Time) (int, error)
}
