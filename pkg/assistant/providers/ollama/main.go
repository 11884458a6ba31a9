package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"github.com/xpanvictor/xtutor/pkg/assistant"
)

// OllamaProvider streams chat completions from a single Ollama host.
type OllamaProvider struct {
	client *api.Client
	model  string
}

func New(baseURL, model string, hc *http.Client) (*OllamaProvider, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama url: %w", err)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &OllamaProvider{client: api.NewClient(u, hc), model: model}, nil
}

// Stream implements assistant.Streamer.
func (o *OllamaProvider) Stream(ctx context.Context, input assistant.StreamInput, onDelta func(string)) error {
	if len(input.Msgs) == 0 {
		return assistant.ErrNoMessages
	}
	msgs, err := convertMsgs(input)
	if err != nil {
		return err
	}
	stream := true
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   &stream,
	}
	err = o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			onDelta(resp.Message.Content)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ollama chat %s: %w", o.model, err)
	}
	return nil
}

func convertMsgs(input assistant.StreamInput) ([]api.Message, error) {
	out := make([]api.Message, 0, len(input.Msgs)+1)
	if input.System != "" {
		out = append(out, api.Message{Role: string(assistant.SYSTEM), Content: input.System})
	}

	var image api.ImageData
	if input.ImageBase64 != "" {
		raw, err := base64.StdEncoding.DecodeString(input.ImageBase64)
		if err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		image = raw
	}
	imageAt := -1
	if image != nil {
		for i := len(input.Msgs) - 1; i >= 0; i-- {
			if input.Msgs[i].MsgRole == assistant.USER {
				imageAt = i
				break
			}
		}
	}

	for i, msg := range input.Msgs {
		m := api.Message{Role: string(msg.MsgRole), Content: msg.Content}
		if i == imageAt {
			m.Images = []api.ImageData{image}
		}
		out = append(out, m)
	}
	return out, nil
}
