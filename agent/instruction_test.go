package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/internal/testutil"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(*core.Session) (string, error) { return m.text, m.err }

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")

	assert.True(t, inst.IsStatic())
	got, err := inst.Resolve(core.NewSession("s"))
	require.NoError(t, err)
	assert.Equal(t, "static instruction", got)
}

func TestInstruction_Provider(t *testing.T) {
	inst := NewInstructionFromProvider(mockProvider{text: "dynamic"})
	assert.False(t, inst.IsStatic())
	got, err := inst.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "dynamic", got)

	_, err = NewInstructionFromProvider(mockProvider{err: errors.New("boom")}).Resolve(nil)
	assert.EqualError(t, err, "boom")
}

func TestInstruction_TemplateIncludesSummary(t *testing.T) {
	inst := NewInstructionFromTemplate("ShopBot", DefaultInstruction)

	plain, err := inst.Resolve(core.NewSession("s"))
	require.NoError(t, err)
	assert.Contains(t, plain, "You are ShopBot")
	assert.NotContains(t, plain, "What you remember")

	sess := testutil.NewSessionBuilder("s").Summary("Budget: under 500.").Build()
	withSummary, err := inst.Resolve(sess)
	require.NoError(t, err)
	assert.Contains(t, withSummary, "What you remember about this shopper: Budget: under 500.")
}
