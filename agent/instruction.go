package agent

import (
	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/internal/util"
)

// DefaultInstruction is the system prompt for conversational replies.
const DefaultInstruction = `You are {{ .name }}, a product recommendation assistant for an online store.

Rules:
1. If the user greets you, greet politely and ask what product they want.
2. Never invent products, prices or links. Product results are shown separately.
3. If you do not know what the user wants, ask one short clarification question
   about the product type, budget range or intended use.
4. Keep answers short.{{ if .summary }}

What you remember about this shopper: {{ .summary }}{{ end }}`

// Provider supplies dynamic instruction text at runtime.
// Implementations can derive instructions from the session, environment, etc.
type Provider interface {
	Instruction(sess *core.Session) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(sess *core.Session) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(sess *core.Session) (string, error) { return f(sess) }

// Instruction represents either a static instruction string or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromTemplate creates an Instruction rendering tmpl with the
// assistant name and the session summary.
func NewInstructionFromTemplate(name, tmpl string) Instruction {
	return NewInstructionFromProvider(Func(func(sess *core.Session) (string, error) {
		data := map[string]any{"name": name, "summary": ""}
		if sess != nil {
			data["summary"] = sess.SummaryText()
		}
		return util.RenderTemplate(tmpl, data)
	}))
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(sess *core.Session) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(sess)
	}
	return i.text, nil
}
