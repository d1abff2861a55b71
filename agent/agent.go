package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/logging"
	"github.com/hupe1980/shopmesh/memory"
	"github.com/hupe1980/shopmesh/model"
)

// Replies used when the pipeline cannot produce a normal answer.
const (
	ReplyEmptyMessage   = "Please type something."
	ReplyUnavailable    = "Product search is temporarily unavailable. Please try again in a moment."
	ReplyCancelled      = "Your request was cancelled before it could be processed."
	ReplyInternalError  = "Sorry, something went wrong while handling your message. Please try again."
	ReplyGreeting       = "Hi! I can help you find products. What are you shopping for today?"
	ReplyThanks         = "You're welcome! Let me know if you're looking for anything else."
	ReplyFarewell       = "Goodbye, and happy shopping!"
	ReplyHelp           = `Tell me what you're looking for, for example "running shoes under 3000" or "office chair for long hours", and I'll show matching products.`
	ReplyClarification  = "Could you tell me which product you're looking for and your budget range?"
	defaultAssistantTag = "ShopMesh"
)

// ProductTool is the search capability the agent invokes
// (implemented by *tool.ProductSearch).
type ProductTool interface {
	Invoke(ctx context.Context, query string) (core.ToolResponse, error)
}

// Options configure an Agent.
type Options struct {
	Name        string
	Classifier  Classifier
	Instruction Instruction
	// Model answers conversational messages. Without one the agent uses
	// canned replies.
	Model             model.Model
	GenerationTimeout time.Duration
	// HistoryTurns is how many recent turns are sent to the model.
	HistoryTurns int
	// CommitTimeout bounds the memory writes after a reply is composed.
	CommitTimeout time.Duration
	Logger        logging.Logger
	// OnReply is called once per handled message.
	OnReply func(reply core.Reply, duration time.Duration)
}

// Agent is the shopping agent loop. It calls its product tool at most once
// per message.
type Agent struct {
	search ProductTool
	store  *memory.Store
	opts   Options
}

// New creates an agent over the product search tool and memory store.
func New(search ProductTool, store *memory.Store, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Name:              defaultAssistantTag,
		Classifier:        RuleClassifier{},
		GenerationTimeout: 20 * time.Second,
		HistoryTurns:      6,
		CommitTimeout:     5 * time.Second,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Classifier == nil {
		opts.Classifier = RuleClassifier{}
	}
	if opts.Instruction.IsStatic() && opts.Instruction.text == "" {
		opts.Instruction = NewInstructionFromTemplate(opts.Name, DefaultInstruction)
	}
	opts.Logger = logging.ForComponent(opts.Logger, "agent")
	return &Agent{search: search, store: store, opts: opts}
}

// HandleMessage answers one user message. It never fails: errors are
// converted into degraded replies. An empty sessionID starts a new session
// whose ID is returned in the reply.
func (a *Agent) HandleMessage(ctx context.Context, sessionID, text string) core.Reply {
	start := time.Now()
	if sessionID = strings.TrimSpace(sessionID); sessionID == "" {
		sessionID = uuid.NewString()
	}
	log := logging.ForSession(a.opts.Logger, sessionID)

	reply := a.handle(ctx, log, sessionID, strings.TrimSpace(text))
	if reply.Products == nil {
		reply.Products = []core.ProductResult{}
	}
	if a.opts.OnReply != nil {
		a.opts.OnReply(reply, time.Since(start))
	}
	log.Info("agent.message.success",
		"intent", string(reply.Intent), "products", len(reply.Products),
		"degraded", reply.Degraded, "duration", time.Since(start))
	return reply
}

func (a *Agent) handle(ctx context.Context, log logging.Logger, sessionID, text string) core.Reply {
	if text == "" {
		return core.Reply{Reply: ReplyEmptyMessage, SessionID: sessionID, Intent: core.IntentConversational}
	}

	release, err := a.store.Acquire(ctx, sessionID)
	if err != nil {
		log.Warn("agent.lock.cancelled", "error", err.Error())
		return degraded(sessionID, "", ReplyCancelled)
	}
	defer release()

	sess, err := a.store.Load(ctx, sessionID)
	if err != nil {
		log.Error("agent.memory.load_failed", "error", err.Error())
	}

	intent := a.opts.Classifier.Classify(text, sess)
	log.Debug("agent.intent.classified", "intent", string(intent.Kind), "reason", intent.Reason)

	var reply core.Reply
	if intent.IsProductQuery() {
		intent.Query = MineConstraints(sess).Augment(intent.Query)
		reply = a.searchProducts(ctx, log, sessionID, intent)
	} else {
		reply = a.converse(ctx, log, sess, text, intent)
	}
	reply.SessionID = sessionID
	reply.Intent = intent.Kind

	if err := ctx.Err(); err != nil {
		log.Warn("agent.commit.skipped", "error", err.Error())
		return degraded(sessionID, intent.Kind, ReplyCancelled)
	}
	a.commit(ctx, log, sessionID, text, reply)
	return reply
}

func (a *Agent) searchProducts(ctx context.Context, log logging.Logger, sessionID string, intent core.Intent) core.Reply {
	resp, err := a.search.Invoke(ctx, intent.Query)
	if err != nil {
		log.Error("agent.tool.failure", "query", intent.Query, "error", err.Error())
		if errors.Is(err, core.ErrRetrievalUnavailable) {
			return degraded(sessionID, intent.Kind, ReplyUnavailable)
		}
		return degraded(sessionID, intent.Kind, ReplyInternalError)
	}
	return core.Reply{Reply: resp.Reply, Products: resp.Products}
}

func (a *Agent) converse(ctx context.Context, log logging.Logger, sess *core.Session, text string, intent core.Intent) core.Reply {
	canned := cannedReply(intent.Reason)
	if a.opts.Model == nil {
		return core.Reply{Reply: canned}
	}

	instructions, err := a.opts.Instruction.Resolve(sess)
	if err != nil {
		log.Warn("agent.instruction.failure", "error", err.Error())
		return core.Reply{Reply: canned, Degraded: true}
	}

	history := sess.History()
	if n := a.opts.HistoryTurns; n >= 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	msgs := make([]model.Message, 0, len(history)+1)
	for _, t := range history {
		msgs = append(msgs, model.Message{Role: string(t.Role), Text: t.Text})
	}
	msgs = append(msgs, model.Message{Role: string(core.RoleUser), Text: text})

	start := time.Now()
	out, err := model.GenerateText(ctx, a.opts.Model, model.Request{Instructions: instructions, Messages: msgs}, a.opts.GenerationTimeout)
	if err != nil {
		log.Error("agent.generation.failure", "duration", time.Since(start), "error", err.Error())
		return core.Reply{Reply: canned, Degraded: true}
	}
	return core.Reply{Reply: out}
}

// commit stores the exchange and compacts memory. It runs detached from the
// request context so both turns land together once the reply exists. The
// assistant turn holds the reply text only; shown products are remembered
// on the session for summaries.
func (a *Agent) commit(ctx context.Context, log logging.Logger, sessionID, text string, reply core.Reply) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.opts.CommitTimeout)
	defer cancel()

	if _, err := a.store.AppendExchange(ctx, sessionID, text, reply.Reply, memory.ShownItems(reply.Products)); err != nil {
		log.Error("agent.memory.append_failed", "error", err.Error())
		return
	}
	if _, err := a.store.CompactIfNeeded(ctx, sessionID); err != nil {
		log.Error("agent.memory.compact_failed", "error", err.Error())
	}
}

func degraded(sessionID string, kind core.IntentKind, text string) core.Reply {
	return core.Reply{Reply: text, Products: []core.ProductResult{}, SessionID: sessionID, Intent: kind, Degraded: true}
}

func cannedReply(reason string) string {
	switch reason {
	case ReasonGreeting:
		return ReplyGreeting
	case ReasonThanks:
		return ReplyThanks
	case ReasonFarewell:
		return ReplyFarewell
	case ReasonHelp:
		return ReplyHelp
	default:
		return ReplyClarification
	}
}
