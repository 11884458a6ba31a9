package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpanvictor/xtutor/pkg/assistant"
)

func TestConvertMsgsAttachesImageToLastUserTurn(t *testing.T) {
	img := base64.StdEncoding.EncodeToString([]byte("png"))
	msgs, err := convertMsgs(assistant.StreamInput{
		System: "be kind",
		Msgs: []assistant.AssistantMessage{
			{MsgRole: assistant.USER, Content: "hi"},
			{MsgRole: assistant.ASSISTANT, Content: "hello"},
			{MsgRole: assistant.USER, Content: "look"},
		},
		ImageBase64: img,
	})
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Empty(t, msgs[1].Images)
	require.Len(t, msgs[3].Images, 1)
	assert.Equal(t, api.ImageData("png"), msgs[3].Images[0])

	_, err = convertMsgs(assistant.StreamInput{Msgs: msgs2(), ImageBase64: "%%%"})
	assert.Error(t, err)
}

func msgs2() []assistant.AssistantMessage {
	return []assistant.AssistantMessage{{MsgRole: assistant.USER, Content: "x"}}
}

func TestStreamAgainstFakeServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req api.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llava", req.Model)

		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, part := range []string{`{"speech": "Hi`, ` there"}`} {
			_ = json.NewEncoder(w).Encode(api.ChatResponse{Model: "llava", Message: api.Message{Role: "assistant", Content: part}})
		}
		_ = json.NewEncoder(w).Encode(api.ChatResponse{Model: "llava", Done: true})
	}))
	defer srv.Close()

	p, err := New(srv.URL, "llava", nil)
	require.NoError(t, err)

	var got strings.Builder
	err = p.Stream(context.Background(), assistant.StreamInput{Msgs: msgs2()}, func(d string) { got.WriteString(d) })
	require.NoError(t, err)
	assert.Equal(t, `{"speech": "Hi there"}`, got.String())

	assert.ErrorIs(t, p.Stream(context.Background(), assistant.StreamInput{}, nil), assistant.ErrNoMessages)
}
