package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageHasToolCalls(t *testing.T) {
	assert.False(t, Message{Role: RoleAssistant, Content: "hi"}.HasToolCalls())
	assert.False(t, Message{Role: RoleUser, ToolCalls: []ToolCall{{Name: "x"}}}.HasToolCalls())
	assert.True(t, Message{Role: RoleAssistant, ToolCalls: []ToolCall{{Name: "cari_siswa"}}}.HasToolCalls())
}

func TestToolMessageJSON(t *testing.T) {
	msg := Message{Role: RoleTool, Content: `{"ok":true}`, ToolCallID: "call-1", Name: "cari_siswa"}

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tool_call_id":"call-1"`)
	assert.NotContains(t, string(data), `"timestamp"`)

	var got Message
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, msg, got)
}
