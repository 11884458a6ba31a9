package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTutorPromptCurrentVersion(t *testing.T) {
	p := TUTOR_PROMPT.GetCurrentPrompt()
	assert.Equal(t, TUTOR_PROMPT.CurrentVersion, p.Version)
	assert.Contains(t, p.Content, `"speech"`)
	assert.Contains(t, p.Content, `"board_actions"`)
	assert.Contains(t, p.Content, `"wait_for_student"`)

	got, ok := TUTOR_PROMPT.GetVersion(p.Version)
	require.True(t, ok)
	assert.Equal(t, p, got)

	_, ok = TUTOR_PROMPT.GetVersion(9.9)
	assert.False(t, ok)
}
