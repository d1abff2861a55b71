package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/internal/util"
	"github.com/hupe1980/shopmesh/logging"
)

// Compaction outcomes reported to Options.OnCompaction.
const (
	OutcomeSummarized = "summarized"
	OutcomeTruncated  = "truncated"
)

// Options configure a Store.
type Options struct {
	// Threshold is the size budget measured by Sizer, summary included.
	Threshold int
	// KeepRecent turns stay verbatim after compaction (when the budget allows).
	KeepRecent int
	// MaxTurns triggers compaction once the user/assistant turn count exceeds
	// it, regardless of size. 0 disables the count trigger.
	MaxTurns       int
	Sizer          Sizer
	Summarizer     Summarizer
	SummaryTimeout time.Duration
	Logger         logging.Logger
	// OnCompaction is called after every compaction with its outcome.
	OnCompaction func(sessionID, outcome string)
}

// DefaultOptions returns the baseline policy: 2000 chars, keep 4, compact
// after 10 turns, extractive summaries.
func DefaultOptions() Options {
	return Options{
		Threshold:      2000,
		KeepRecent:     4,
		MaxTurns:       10,
		Sizer:          CharSizer{},
		Summarizer:     ExtractiveSummarizer{},
		SummaryTimeout: 15 * time.Second,
		Logger:         logging.NoOpLogger{},
	}
}

// Validate checks the policy for consistency.
func (o Options) Validate() error {
	if o.Threshold <= 0 {
		return errors.New("memory: threshold must be positive")
	}
	if o.KeepRecent < 0 {
		return errors.New("memory: keep_recent must not be negative")
	}
	if o.MaxTurns > 0 && o.KeepRecent >= o.MaxTurns {
		return fmt.Errorf("memory: keep_recent (%d) must be lower than max_turns (%d)", o.KeepRecent, o.MaxTurns)
	}
	return nil
}

// Store is the conversation memory store.
type Store struct {
	backend core.SessionStore
	locks   *keyedMutex
	opts    Options
}

// NewStore creates a Store over backend. Invalid options panic, since they
// indicate a programming error; validate user input with Options.Validate.
func NewStore(backend core.SessionStore, optFns ...func(o *Options)) *Store {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Sizer == nil {
		opts.Sizer = CharSizer{}
	}
	if opts.Summarizer == nil {
		opts.Summarizer = ExtractiveSummarizer{}
	}
	opts.Logger = logging.ForComponent(opts.Logger, "memory")
	if err := opts.Validate(); err != nil {
		panic(err)
	}
	return &Store{backend: backend, locks: newKeyedMutex(), opts: opts}
}

// Options returns the effective policy.
func (s *Store) Options() Options { return s.opts }

// Acquire takes the per-session lock. The returned release func is
// idempotent. Different session IDs never contend.
func (s *Store) Acquire(ctx context.Context, sessionID string) (func(), error) {
	return s.locks.acquire(ctx, sessionID)
}

// Load returns the session, or a fresh empty one for an unseen ID. On
// backend failure it still returns an empty session alongside a
// *core.SessionStoreError so callers can degrade.
func (s *Store) Load(ctx context.Context, sessionID string) (*core.Session, error) {
	sess, err := s.backend.Get(ctx, sessionID)
	if err == nil {
		return sess, nil
	}
	if errors.Is(err, core.ErrSessionNotFound) {
		return core.NewSession(sessionID), nil
	}
	return core.NewSession(sessionID), &core.SessionStoreError{Op: "load", SessionID: sessionID, Err: err}
}

// Append adds one user or assistant turn with the next index.
func (s *Store) Append(ctx context.Context, sessionID string, role core.Role, text string) (core.Turn, error) {
	turns, err := s.AppendTurns(ctx, sessionID, TurnInput{Role: role, Text: text})
	if err != nil {
		return core.Turn{}, err
	}
	return turns[0], nil
}

// TurnInput is a turn to append.
type TurnInput struct {
	Role core.Role
	Text string
}

// AppendTurns appends several turns in one load/put cycle, so either all of
// them are stored or none.
func (s *Store) AppendTurns(ctx context.Context, sessionID string, inputs ...TurnInput) ([]core.Turn, error) {
	return s.appendTurns(ctx, sessionID, nil, inputs)
}

// AppendExchange stores a user message and the assistant reply together
// with the products shown alongside it. The products are kept on the
// session for summaries and never enter the turn text.
func (s *Store) AppendExchange(ctx context.Context, sessionID, user, assistant string, shown []string) ([]core.Turn, error) {
	return s.appendTurns(ctx, sessionID, shown, []TurnInput{
		{Role: core.RoleUser, Text: user},
		{Role: core.RoleAssistant, Text: assistant},
	})
}

func (s *Store) appendTurns(ctx context.Context, sessionID string, shown []string, inputs []TurnInput) ([]core.Turn, error) {
	for _, in := range inputs {
		if in.Role != core.RoleUser && in.Role != core.RoleAssistant {
			return nil, fmt.Errorf("memory: cannot append turn with role %q", in.Role)
		}
	}
	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]core.Turn, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, sess.AppendTurn(in.Role, in.Text))
	}
	sess.RecordShown(shown...)
	if err := s.backend.Put(ctx, sess); err != nil {
		return nil, &core.SessionStoreError{Op: "append", SessionID: sessionID, Err: err}
	}
	return out, nil
}

// Size measures a session with the configured Sizer.
func (s *Store) Size(sess *core.Session) int {
	total := 0
	for _, t := range sess.Turns {
		total += s.opts.Sizer.Size(t.Text)
	}
	return total
}

// NeedsCompaction reports whether sess exceeds the size or turn budget.
func (s *Store) NeedsCompaction(sess *core.Session) bool {
	if s.Size(sess) > s.opts.Threshold {
		return true
	}
	return s.opts.MaxTurns > 0 && len(sess.History()) > s.opts.MaxTurns
}

// CompactIfNeeded compacts the session when it is over budget and reports
// whether it did. Calling it again without new appends is a no-op.
func (s *Store) CompactIfNeeded(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if !s.NeedsCompaction(sess) {
		return false, nil
	}

	before := s.Size(sess)
	outcome := s.compact(ctx, sess)

	if err := s.backend.Put(ctx, sess); err != nil {
		return false, &core.SessionStoreError{Op: "compact", SessionID: sessionID, Err: err}
	}
	s.opts.Logger.Info("memory.compaction.success",
		"session_id", sessionID, "outcome", outcome, "size_before", before, "size_after", s.Size(sess),
		"turns", len(sess.Turns), "sizer", s.opts.Sizer.Name())
	if s.opts.OnCompaction != nil {
		s.opts.OnCompaction(sessionID, outcome)
	}
	return true, nil
}

// compact rewrites sess in place and returns the outcome. Kept turns keep
// their indices; the summary turn takes the index right before the first of
// them.
func (s *Store) compact(ctx context.Context, sess *core.Session) string {
	lastIssued := sess.NextIndex() - 1
	outcome := OutcomeTruncated

	split := len(sess.Turns) - s.opts.KeepRecent
	if split > 0 {
		old, recent := sess.Turns[:split], append([]core.Turn(nil), sess.Turns[split:]...)

		var fold []core.Turn
		var prevSummary *core.Turn
		for i := range old {
			if old[i].Role == core.RoleSummary {
				prevSummary = &old[i]
				continue
			}
			fold = append(fold, old[i])
		}

		summary, err := s.summarize(ctx, sess, fold)
		switch {
		case err == nil && summary != "":
			sess.Turns = append([]core.Turn{{Role: core.RoleSummary, Text: summary, Created: time.Now()}}, recent...)
			sess.SetSummary(summary)
			sess.Shown = nil
			outcome = OutcomeSummarized
		case prevSummary != nil:
			sess.Turns = append([]core.Turn{*prevSummary}, recent...)
		default:
			sess.Turns = recent
		}
		if err != nil {
			s.opts.Logger.Warn("memory.summary.failure", "session_id", sess.ID, "error", err.Error())
		}
	}

	s.enforceBound(sess)
	placeSummary(sess, lastIssued)
	sess.Compactions++
	sess.Updated = time.Now()
	return outcome
}

func (s *Store) summarize(ctx context.Context, sess *core.Session, fold []core.Turn) (string, error) {
	if len(fold) == 0 {
		return "", nil
	}
	if s.opts.SummaryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.SummaryTimeout)
		defer cancel()
	}
	return s.opts.Summarizer.Summarize(ctx, SummaryInput{
		Previous: sess.SummaryText(),
		Turns:    fold,
		Shown:    sess.Shown,
	})
}

// enforceBound drops the oldest verbatim turns until the session fits. If
// the summary alone is still too large it is replaced by a clipped one;
// appended turns are never rewritten, only dropped.
func (s *Store) enforceBound(sess *core.Session) {
	for s.Size(sess) > s.opts.Threshold && len(sess.History()) > 1 {
		dropOldestVerbatim(sess)
	}
	if s.Size(sess) <= s.opts.Threshold {
		return
	}
	if i := indexOfRole(sess.Turns, core.RoleSummary); i >= 0 {
		room := s.opts.Threshold - (s.Size(sess) - s.opts.Sizer.Size(sess.Turns[i].Text))
		text := s.clip(sess.Turns[i].Text, room)
		if text == "" {
			sess.Turns = append(sess.Turns[:i], sess.Turns[i+1:]...)
			sess.Summary = nil
		} else {
			sess.Turns[i] = core.Turn{Index: sess.Turns[i].Index, Role: core.RoleSummary, Text: text, Created: time.Now()}
			sess.SetSummary(text)
		}
	}
	for s.Size(sess) > s.opts.Threshold && len(sess.History()) > 0 {
		dropOldestVerbatim(sess)
	}
}

// placeSummary numbers a leading summary turn directly before the first
// verbatim turn, or on the last issued index when it stands alone.
func placeSummary(sess *core.Session, lastIssued int) {
	if len(sess.Turns) == 0 || sess.Turns[0].Role != core.RoleSummary {
		return
	}
	if len(sess.Turns) > 1 {
		sess.Turns[0].Index = sess.Turns[1].Index - 1
		return
	}
	sess.Turns[0].Index = lastIssued
}

// clip returns the longest prefix of text (ellipsis included) whose size is
// within budget.
func (s *Store) clip(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if s.opts.Sizer.Size(text) <= budget {
		return text
	}
	n := len([]rune(text))
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if s.opts.Sizer.Size(util.Truncate(text, mid)) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo == 0 {
		return ""
	}
	return util.Truncate(text, lo)
}

func dropOldestVerbatim(sess *core.Session) {
	for i, t := range sess.Turns {
		if t.Role != core.RoleSummary {
			sess.Turns = append(sess.Turns[:i], sess.Turns[i+1:]...)
			return
		}
	}
}

func indexOfRole(turns []core.Turn, role core.Role) int {
	for i, t := range turns {
		if t.Role == role {
			return i
		}
	}
	return -1
}
