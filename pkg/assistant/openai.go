package assistant

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
}

type openAIStreamer struct {
	client    openai.Client
	model     string
	maxTokens int64
}

func NewOpenAIStreamer(cfg OpenAIConfig, opts ...option.RequestOption) Streamer {
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &openAIStreamer{
		client:    openai.NewClient(reqOpts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Stream implements Streamer.
func (o *openAIStreamer) Stream(ctx context.Context, input StreamInput, onDelta func(string)) error {
	if len(input.Msgs) == 0 {
		return ErrNoMessages
	}
	params := openai.ChatCompletionNewParams{
		Messages: convertToOpenaiMsgs(input),
		Model:    openai.ChatModel(o.model),
	}
	if o.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(o.maxTokens)
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			onDelta(delta)
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai stream: %w", err)
	}
	return nil
}

func convertToOpenaiMsgs(input StreamInput) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(input.Msgs)+1)
	if input.System != "" {
		out = append(out, openai.SystemMessage(input.System))
	}
	imageAt := -1
	if input.ImageBase64 != "" {
		imageAt = lastUserIndex(input.Msgs)
	}
	for i, msg := range input.Msgs {
		if i == imageAt {
			out = append(out, openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(msg.Content),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: "data:image/png;base64," + input.ImageBase64,
				}),
			}))
			continue
		}
		out = append(out, convertToOpenaiMsg(msg))
	}
	return out
}

func convertToOpenaiMsg(msg AssistantMessage) openai.ChatCompletionMessageParamUnion {
	switch msg.MsgRole {
	case ASSISTANT:
		return openai.AssistantMessage(msg.Content)
	case USER:
		return openai.UserMessage(msg.Content)
	case SYSTEM:
		return openai.SystemMessage(msg.Content)
	}
	return openai.UserMessage(msg.Content)
}
