// Package llm wraps the completion and embedding oracles behind small
// gateway-facing interfaces.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Message roles as the oracle understands them.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prompt message.
type Message struct {
	Role    string
	Content string
}

// Client talks to the OpenAI-compatible completion and embedding oracles.
type Client struct {
	model *openai.LLM
}

// New constructs a client for the given chat and embedding models. The API
// key is taken from OPENAI_API_KEY by the underlying client.
func New(chatModel, embedModel string) (*Client, error) {
	model, err := openai.New(
		openai.WithModel(chatModel),
		openai.WithEmbeddingModel(embedModel),
	)
	if err != nil {
		return nil, fmt.Errorf("init openai client: %w", err)
	}
	return &Client{model: model}, nil
}

// Complete runs a single buffered completion.
func (c *Client) Complete(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	resp, err := c.model.GenerateContent(ctx, toContent(messages), llms.WithMaxTokens(maxTokens))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generate content: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// StreamComplete runs a completion in token-emission mode, invoking emit for
// each token as it arrives, and returns the full concatenated text. An error
// returned by emit aborts the stream and is returned unchanged.
func (c *Client) StreamComplete(ctx context.Context, messages []Message, maxTokens int, emit func(token string) error) (string, error) {
	var full strings.Builder
	var emitErr error

	_, err := c.model.GenerateContent(ctx, toContent(messages),
		llms.WithMaxTokens(maxTokens),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			full.Write(chunk)
			if err := emit(string(chunk)); err != nil {
				emitErr = err
				return err
			}
			return nil
		}),
	)
	if emitErr != nil {
		return full.String(), emitErr
	}
	if err != nil {
		return full.String(), fmt.Errorf("generate stream: %w", err)
	}
	return full.String(), nil
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	input := strings.TrimSpace(text)
	if input == "" {
		return nil, fmt.Errorf("embed: empty input")
	}
	vectors, err := c.model.CreateEmbedding(ctx, []string{input})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("create embedding: missing vector")
	}
	return vectors[0], nil
}

func toContent(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		var role llms.ChatMessageType
		switch msg.Role {
		case RoleSystem:
			role = llms.ChatMessageTypeSystem
		case RoleAssistant:
			role = llms.ChatMessageTypeAI
		default:
			role = llms.ChatMessageTypeHuman
		}
		out = append(out, llms.TextParts(role, msg.Content))
	}
	return out
}
