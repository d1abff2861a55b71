package testutil

import (
	"github.com/hupe1980/shopmesh/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").User("hi").Assistant("hello").Build()
type SessionBuilder struct {
	id      string
	turns   []turn
	summary *string
	shown   []string
}

type turn struct {
	role core.Role
	text string
}

// NewSessionBuilder creates a new builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id}
}

// User appends a user turn (chainable).
func (b *SessionBuilder) User(text string) *SessionBuilder {
	b.turns = append(b.turns, turn{core.RoleUser, text})
	return b
}

// Assistant appends an assistant turn (chainable).
func (b *SessionBuilder) Assistant(text string) *SessionBuilder {
	b.turns = append(b.turns, turn{core.RoleAssistant, text})
	return b
}

// Exchange appends n user/assistant pairs with generated text (chainable).
func (b *SessionBuilder) Exchange(n int, text string) *SessionBuilder {
	for i := 0; i < n; i++ {
		b.User(text).Assistant(text)
	}
	return b
}

// Summary sets a leading summary turn and the session summary (chainable).
func (b *SessionBuilder) Summary(text string) *SessionBuilder {
	b.summary = &text
	return b
}

// Shown records products as already displayed (chainable).
func (b *SessionBuilder) Shown(items ...string) *SessionBuilder {
	b.shown = append(b.shown, items...)
	return b
}

// Build returns a *core.Session with gap-free indices.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	if b.summary != nil {
		s.SetSummary(*b.summary)
		s.Compactions = 1
		s.AppendTurn(core.RoleSummary, *b.summary)
	}
	for _, t := range b.turns {
		s.AppendTurn(t.role, t.text)
	}
	s.RecordShown(b.shown...)
	return s
}
