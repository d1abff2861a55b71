package agent

import (
	"strings"

	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/internal/util"
)

// Intent reasons reported by RuleClassifier.
const (
	ReasonEmpty     = "empty"
	ReasonGreeting  = "greeting"
	ReasonThanks    = "thanks"
	ReasonFarewell  = "farewell"
	ReasonHelp      = "help"
	ReasonSmallTalk = "small_talk"
	ReasonBudget    = "budget"
	ReasonProduct   = "product_terms"
	ReasonFollowUp  = "follow_up"
)

// Classifier decides how a message is handled.
type Classifier interface {
	Classify(text string, sess *core.Session) core.Intent
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(text string, sess *core.Session) core.Intent

// Classify implements Classifier.
func (f ClassifierFunc) Classify(text string, sess *core.Session) core.Intent { return f(text, sess) }

// RuleClassifier routes messages with keyword rules:
//   - anything naming a product, a budget or a product attribute is a
//     product query
//   - a short reply to the assistant's clarification question continues
//     the previous product conversation
//   - everything else (greetings, thanks, help, small talk) is conversational
type RuleClassifier struct {
	// FollowUpWords is the longest message treated as an answer to a
	// clarification question.
	FollowUpWords int
}

// Classify implements Classifier.
func (c RuleClassifier) Classify(text string, sess *core.Session) core.Intent {
	text = strings.TrimSpace(text)
	if text == "" {
		return core.Conversational(ReasonEmpty)
	}

	t := analyze(text)
	remembered := MineConstraints(sess)

	switch {
	case len(t.subject) > 0:
		return core.ProductQuery(text, ReasonProduct)
	case t.hasBudget || t.hasContent():
		if remembered.HasSubject() {
			return core.ProductQuery(text, ReasonFollowUp)
		}
		if t.hasBudget {
			return core.ProductQuery(text, ReasonBudget)
		}
		return core.ProductQuery(text, ReasonProduct)
	}

	if remembered.HasSubject() && c.answersClarification(text, sess) {
		return core.ProductQuery(text, ReasonFollowUp)
	}
	return core.Conversational(smallTalkReason(text))
}

func (c RuleClassifier) answersClarification(text string, sess *core.Session) bool {
	if sess == nil {
		return false
	}
	last, ok := sess.LastTurn(core.RoleAssistant)
	if !ok {
		return false
	}
	reply := last.Text
	if i := strings.Index(reply, "\n"); i >= 0 {
		reply = reply[:i]
	}
	if !strings.Contains(reply, "?") {
		return false
	}
	limit := c.FollowUpWords
	if limit <= 0 {
		limit = 4
	}
	tokens := util.Tokenize(text)
	if len(tokens) > limit {
		return false
	}
	for _, tok := range tokens {
		switch tok {
		case "yes", "yeah", "yep", "yup", "sure", "ok", "okay", "please":
			return true
		}
	}
	return false
}

func smallTalkReason(text string) string {
	tokens := util.Tokenize(text)
	has := func(words ...string) bool {
		for _, tok := range tokens {
			for _, w := range words {
				if tok == w {
					return true
				}
			}
		}
		return false
	}
	switch {
	case has("thanks", "thank", "thx", "ty"):
		return ReasonThanks
	case has("bye", "goodbye", "cya"):
		return ReasonFarewell
	case has("help") || strings.Contains(strings.ToLower(text), "what can you do"):
		return ReasonHelp
	case has("hi", "hello", "hey", "hii", "hiya", "namaste", "greetings") || has("morning", "evening", "afternoon"):
		return ReasonGreeting
	default:
		return ReasonSmallTalk
	}
}
